// Package transcript implements the encrypted Transcript Store.
//
// Records are sealed before they reach a Backend, so every backend (the
// in-memory one below, the SQLite one in transcript/sqlite) only ever sees
// ciphertext and an obscured per-user reference:
//
//   - Per-user keys are derived with HKDF-SHA256 from a global secret and the
//     user ID.
//   - Fields are sealed with XChaCha20-Poly1305. The additional data binds
//     format version, record kind, user and session, so a ciphertext cannot
//     be replayed into another user's or session's record.
//   - The storage key for a user is a keyed BLAKE3 hash of the user ID.
//
// Every failure surfaced by Store matches core.ErrStoreUnavailable. There is
// no plaintext fallback.
package transcript
