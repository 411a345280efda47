package inputtype

import (
	"errors"

	"github.com/plaenen/commandgateway/pkg/application"
)

// Cache holds the descriptors of every handler of an application. It is
// populated once by NewCache and never modified, so concurrent reads are safe.
type Cache struct {
	byName map[string]*Descriptor
	order  []*Descriptor
}

// NewCache derives the descriptor of every handler in app. All derivation
// failures are reported together.
func NewCache(app *application.Application) (*Cache, error) {
	handlers := app.Handlers()
	c := &Cache{
		byName: make(map[string]*Descriptor, len(handlers)),
		order:  make([]*Descriptor, 0, len(handlers)),
	}

	var errs []error
	for _, h := range handlers {
		d, err := Derive(h)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.byName[d.Name] = d
		c.order = append(c.order, d)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// ByName returns the descriptor for an operation name.
func (c *Cache) ByName(name string) (*Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// All returns every descriptor ordered by handler key.
func (c *Cache) All() []*Descriptor {
	return append([]*Descriptor(nil), c.order...)
}
