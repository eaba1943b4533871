// Package resource contains the naming, configuration and registration of robot components.
package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Resource types.
const (
	TypeComponent = "component"
	TypeService   = "service"
)

// An API names a kind of resource, e.g. "component:motor".
type API struct {
	Type    string
	Subtype string
}

// APINamespaceComponent returns the API for a component subtype.
func APINamespaceComponent(subtype string) API {
	return API{Type: TypeComponent, Subtype: subtype}
}

// IsComponent returns whether the API is a component API.
func (a API) IsComponent() bool {
	return a.Type == TypeComponent
}

func (a API) String() string {
	return fmt.Sprintf("%s:%s", a.Type, a.Subtype)
}

// Validate ensures both parts of the API are set.
func (a API) Validate() error {
	if a.Type == "" {
		return errors.New("type field for resource api missing or invalid")
	}
	if a.Subtype == "" {
		return errors.New("subtype field for resource api missing or invalid")
	}
	return nil
}

// MarshalText renders the API as "type:subtype".
func (a API) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses "type:subtype". A bare subtype is taken to be a component.
func (a *API) UnmarshalText(text []byte) error {
	parsed, err := ParseAPI(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAPI parses "type:subtype" or a bare component subtype.
func ParseAPI(s string) (API, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return API{}, errors.New("empty api")
		}
		return APINamespaceComponent(parts[0]), nil
	case 2:
		api := API{Type: parts[0], Subtype: parts[1]}
		return api, api.Validate()
	}
	return API{}, errors.Errorf("api %q must be of the form type:subtype", s)
}

// A Model identifies one implementation of an API, e.g. "fake".
type Model string

// Name identifies a single configured resource.
type Name struct {
	API  API
	Name string
}

// NewName creates a new Name.
func NewName(api API, name string) Name {
	return Name{API: api, Name: name}
}

func (n Name) String() string {
	return fmt.Sprintf("%s/%s", n.API, n.Name)
}

// UUID returns a stable identifier derived from the full name.
func (n Name) UUID() string {
	return uuid.NewSHA1(uuid.NameSpaceX500, []byte(n.String())).String()
}

// AsNamed returns a Named that reports this name. Meant to be embedded by resources.
func (n Name) AsNamed() Named {
	return selfNamed{name: n}
}

// Named is anything that knows its resource name.
type Named interface {
	Name() Name
}

type selfNamed struct {
	name Name
}

func (n selfNamed) Name() Name {
	return n.name
}

// Resource is the base of every component.
type Resource interface {
	Named
	// Close must safely shut down the resource and leave any actuator stopped.
	Close(ctx context.Context) error
}

// TriviallyCloseable is to be embedded by any resource that does not care about handling Closes.
type TriviallyCloseable struct{}

// Close always returns no error.
func (t TriviallyCloseable) Close(ctx context.Context) error {
	return nil
}
