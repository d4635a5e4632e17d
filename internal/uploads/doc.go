// Package uploads implements the upload session state machine behind
// POST /upload.
//
// A target file is addressed by folder and filename under the upload root.
// Clients either send it whole (single) or start fresh (nuke), send chunks
// in order (append) and finish with done. Finalizing a file can hand it to
// the transcoder, either inline or as a background job.
//
// Requests for the same target are serialized through a session registry:
// a second request that arrives while the first still holds the path is
// rejected with ErrSessionBusy rather than interleaving bytes. Idle sessions
// expire after the configured session TTL.
package uploads
