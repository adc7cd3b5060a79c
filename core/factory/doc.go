// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[store.Store]()
//	reg.Register("file", func(conf map[string]any) (store.Store, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return OpenFileStore(c.Path)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "file", Conf: map[string]any{"path": "data"}})
package factory
