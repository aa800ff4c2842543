package ports

// EnvLoader loads environment variables from a dotenv-style file.
//
// The relay reads provider API keys from the process environment; a .env file next
// to the binary is the usual way to get them there during development. Values from
// the file never overwrite variables already set by the deployment platform unless
// Overwrite is set.
type EnvLoader interface {
	Load(req LoadEnvRequest) (LoadEnvResult, error)
}

type LoadEnvRequest struct {
	// Path is the dotenv file to load. A missing file yields Loaded=false, not an error.
	Path string

	Overwrite bool
}

type LoadEnvResult struct {
	Loaded   bool
	KeysSet  []string
	Warnings []string
}
