// Package tunconfig parses tunnel start requests.
//
// A start request is a JSON document shaped like this:
//
//	{
//	  "name": "office",
//	  "config": {
//	    "include_apps": ["..."],
//	    "exclude_apps": ["..."],
//	    "service": {
//	      "tun": {"addr": "10.8.0.2/24", "mtu": 1400, "dns": ["10.8.0.1"]},
//	      "protocol": {"peers": [{"routes": [{"route": "10.0.0.0/8"}]}]}
//	    }
//	  }
//	}
//
// name, config.service.tun.addr and config.service.protocol.peers are
// required. Everything else is optional. Keys are case sensitive: a key that
// only matches in a different case is ignored.
package tunconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/speedguard/sgvpn/internal/model"
)

type rawDocument struct {
	Name   *string    `json:"name"`
	Config *rawConfig `json:"config"`
}

type rawConfig struct {
	IncludeApps []string    `json:"include_apps"`
	ExcludeApps []string    `json:"exclude_apps"`
	Service     *rawService `json:"service"`
}

type rawService struct {
	Tun      *rawTun      `json:"tun"`
	Protocol *rawProtocol `json:"protocol"`
}

type rawTun struct {
	Addr *string  `json:"addr"`
	MTU  *int     `json:"mtu"`
	DNS  []string `json:"dns"`
}

type rawProtocol struct {
	// a pointer so that an empty list can be told apart from a missing one
	Peers *[]rawPeer `json:"peers"`
}

type rawPeer struct {
	Routes []rawRoute `json:"routes"`
}

type rawRoute struct {
	Route *string `json:"route"`
}

// Parse validates raw and returns the corresponding [model.TunnelConfig].
// Errors are always of type *[ConfigError].
func Parse(raw string) (*model.TunnelConfig, error) {
	if !json.Valid([]byte(raw)) {
		var doc any
		return nil, &ConfigError{Kind: Syntax, Err: json.Unmarshal([]byte(raw), &doc)}
	}
	var doc rawDocument
	if err := decodeObject([]byte(raw), "", &doc); err != nil {
		return nil, err
	}

	if doc.Name == nil {
		return nil, missing("name")
	}
	if doc.Config == nil {
		return nil, missing("config")
	}
	if doc.Config.Service == nil {
		return nil, missing("config.service")
	}
	tun := doc.Config.Service.Tun
	if tun == nil {
		return nil, missing("config.service.tun")
	}
	if tun.Addr == nil {
		return nil, missing("config.service.tun.addr")
	}
	proto := doc.Config.Service.Protocol
	if proto == nil {
		return nil, missing("config.service.protocol")
	}
	if proto.Peers == nil {
		return nil, missing("config.service.protocol.peers")
	}

	addr, err := ParseEndpoint(*tun.Addr)
	if err != nil {
		return nil, atPath(err, "config.service.tun.addr")
	}

	cfg := &model.TunnelConfig{
		Name:        *doc.Name,
		IncludeApps: uniqueStrings(doc.Config.IncludeApps),
		ExcludeApps: uniqueStrings(doc.Config.ExcludeApps),
		Address:     addr,
		MTU:         model.DefaultMTU,
		DNSServers:  append([]string{}, tun.DNS...),
		PeerRoutes:  []model.Endpoint{},
	}
	if tun.MTU != nil {
		cfg.MTU = *tun.MTU
	}

	for i, peer := range *proto.Peers {
		for j, r := range peer.Routes {
			path := fmt.Sprintf("config.service.protocol.peers[%d].routes[%d].route", i, j)
			if r.Route == nil {
				return nil, missing(path)
			}
			route, err := ParseEndpoint(*r.Route)
			if err != nil {
				return nil, atPath(err, path)
			}
			cfg.PeerRoutes = append(cfg.PeerRoutes, route)
		}
	}
	return cfg, nil
}

var nullValue = []byte("null")

// decodeObject decodes the JSON object data into the struct v points to.
// Unlike json.Unmarshal it only accepts keys equal to the json tags, and
// it reports type mismatches as [InvalidField] at their full path.
func decodeObject(data []byte, path string, v any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return invalid(path, err)
	}
	rv := reflect.ValueOf(v).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		key := rt.Field(i).Tag.Get("json")
		value, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(value), nullValue) {
			continue
		}
		if err := decodeValue(value, joinPath(path, key), rv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

// decodeValue stores data into field, recursing into nested objects.
func decodeValue(data []byte, path string, field reflect.Value) error {
	t := field.Type()
	switch {
	case t.Kind() == reflect.Pointer && isObject(t.Elem()):
		ptr := reflect.New(t.Elem())
		if err := decodeObject(data, path, ptr.Interface()); err != nil {
			return err
		}
		field.Set(ptr)
		return nil

	case t.Kind() == reflect.Pointer && isObjectList(t.Elem()):
		ptr := reflect.New(t.Elem())
		if err := decodeValue(data, path, ptr.Elem()); err != nil {
			return err
		}
		field.Set(ptr)
		return nil

	case isObjectList(t):
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return invalid(path, err)
		}
		list := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if err := decodeObject(item, itemPath, list.Index(i).Addr().Interface()); err != nil {
				return err
			}
		}
		field.Set(list)
		return nil

	default:
		if err := json.Unmarshal(data, field.Addr().Interface()); err != nil {
			return invalid(path, err)
		}
		return nil
	}
}

func isObject(t reflect.Type) bool {
	return t.Kind() == reflect.Struct
}

func isObjectList(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && isObject(t.Elem())
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func invalid(path string, err error) error {
	return &ConfigError{Kind: InvalidField, Path: path, Err: err}
}

func atPath(err error, path string) error {
	var cerr *ConfigError
	if errors.As(err, &cerr) {
		cerr.Path = path
	}
	return err
}

// uniqueStrings returns the input without duplicates, keeping the first
// occurrence of each entry.
func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
