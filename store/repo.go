package store

// Repo is the persistent client-side key-value store that holds the session
// profile and bearer token between runs. A missing key reads back as an
// empty string, not an error.
type Repo interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// TokenMirror is the secondary copy of the bearer token, kept for surfaces
// the primary store cannot reach (cross-origin cookie-authenticated
// requests). Readers always consult the primary store first and fall back to
// the mirror only when the primary has no value.
type TokenMirror interface {
	WriteToken(token string) error
	ReadToken() (string, error)
	Clear() error
}
