// Package auth is the identity and access layer of the LMS: accounts,
// role profiles, sign in, sessions and the password lifecycle.
//
// Accounts:
//   - A User carries exactly one Role. Participants, guardians and
//     department heads also own a profile row, created in the same
//     transaction as the user. RegisterParticipantHandler is the public
//     sign up path, CreateAccountHandler the administrative one.
//   - Usernames are synthesized from the email local part when none is
//     given (user_<local>, then user_<local>_1, ...). Emails are unique
//     ignoring case.
//
// Sign in:
//   - Authenticator resolves an email or a phone number, checks the role
//     the login page expects, verifies the password and then runs the
//     LoginGate chain. Failures carry a text code (see TextCodeOf) and,
//     for blocked logins, a reason (see BlockedReason).
//
// Sessions:
//   - SessionManager issues opaque server side sessions stored in SQL or
//     Redis. The cookie is a signed token naming the session. Sessions are
//     rotated at sign in and revoked when the password or role changes.
//
// Activity:
//   - ActivitySink receives best effort audit events for sign in, sign up,
//     account changes and the password lifecycle. Sink errors are logged
//     and never fail the operation.
package auth
