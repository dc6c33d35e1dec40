package models

// User is a credential pair. The gateway accepts exactly one of these,
// supplied through configuration; anonymous access is disabled.
type User struct {
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
}

// Access describes the storage backend behind the upload root.
type Access struct {
	// Fs selects the backend implementation: "os", "s3" or "dropbox".
	Fs string `json:"fs" mapstructure:"fs"`

	// ReadOnly wraps the backend so that every write is rejected.
	ReadOnly bool `json:"read_only" mapstructure:"read_only"`

	// Params carries backend-specific settings (basePath, bucket, token, ...).
	Params map[string]string `json:"params" mapstructure:"params"`
}

// Param returns the named parameter or an empty string.
func (a *Access) Param(name string) string {
	if a.Params == nil {
		return ""
	}
	return a.Params[name]
}
