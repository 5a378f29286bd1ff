package component

// ConfigLoader configuration loader interface
//
// Provides unified configuration reading; components read their own sections
// through this interface instead of depending on a concrete config structure
type ConfigLoader interface {
	// Get returns a configuration value
	//
	// key: configuration key (e.g. "querycache.default_stale_time")
	Get(key string) interface{}

	// Unmarshal deserializes a configuration section into a struct
	//
	// key: section key (e.g. "querycache" reads the whole querycache section)
	// v: pointer to the target struct
	//
	// Example:
	//   var cfg querycache.Config
	//   if err := loader.Unmarshal("querycache", &cfg); err != nil {
	//       return err
	//   }
	Unmarshal(key string, v interface{}) error

	// GetString gets a string value
	GetString(key string) string

	// GetInt gets an integer value
	GetInt(key string) int

	// GetBool gets a boolean value
	GetBool(key string) bool

	// IsSet checks whether the key exists
	IsSet(key string) bool
}
