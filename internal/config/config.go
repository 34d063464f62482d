// Package config defines process configuration for the emotion classifier
// binaries and the loader that layers defaults, a YAML file and environment.
package config

// Backends understood by Config.Backend.
const (
	BackendNative = "native"
	BackendONNX   = "onnx"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ModelDir is the directory holding model_1_atul.tflearn.meta. Empty
	// means the working directory.
	ModelDir string `koanf:"model_dir"`

	// Backend selects the inference framework: native or onnx.
	Backend string `koanf:"backend"`

	// ONNXLibrary points at the onnxruntime shared library for the onnx backend.
	ONNXLibrary string `koanf:"onnx_library"`

	// InputPath is an image file or a directory of frames for the drivers.
	InputPath string `koanf:"input_path"`

	// Seed drives parameter initialisation of untrained native models.
	Seed uint64 `koanf:"seed"`

	// MaxUploadBytes caps multipart image uploads.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":8080",
		Backend:        BackendNative,
		InputPath:      "frames",
		Seed:           1,
		MaxUploadBytes: 10 << 20,
	}
}
