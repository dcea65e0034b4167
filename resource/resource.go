package resource

import (
	"github.com/viant/toolbox"
)

// Reserved routing keys. They steer allocator selection and are stripped
// before a description is forwarded to the remote side.
const (
	// KeyLocalhost, when truthy, demands execution on the caller's own
	// host, which no remote allocator can satisfy.
	KeyLocalhost = "localhost"

	// KeyAllocator names the only allocator allowed to handle the request.
	KeyAllocator = "allocator"

	// KeyRemoteCommand holds the command to run on the remote host.
	KeyRemoteCommand = "remote_command"

	// KeyArgs holds the command arguments.
	KeyArgs = "args"

	// KeyJobName holds an optional job name used for server naming and logs.
	KeyJobName = "job_name"
)

// Description describes a requested job's resource needs as an open
// string-keyed map. Apart from the reserved routing keys above, keys are
// opaque payload forwarded verbatim to the remote side.
type Description map[string]interface{}

// Clone returns a shallow copy of the description.
func (d Description) Clone() Description {
	ret := make(Description, len(d))
	for k, v := range d {
		ret[k] = v
	}
	return ret
}

// Has returns true if key is present.
func (d Description) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// String returns the value of key coerced to string, or def when absent.
func (d Description) String(key, def string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	return toolbox.AsString(v)
}

// Int returns the value of key coerced to int, or def when absent. JSON
// transports widen integers to float64, so coercion rather than a bare
// type assertion is required.
func (d Description) Int(key string, def int) int {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	return toolbox.AsInt(v)
}

// Bool returns the value of key coerced to bool, or def when absent.
func (d Description) Bool(key string, def bool) bool {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	return toolbox.AsBoolean(v)
}

// Strings returns the value of key as a string slice. Both []string and
// []interface{} representations are accepted.
func (d Description) Strings(key string) []string {
	v, ok := d[key]
	if !ok || v == nil {
		return nil
	}
	switch actual := v.(type) {
	case []string:
		return actual
	case []interface{}:
		ret := make([]string, 0, len(actual))
		for _, item := range actual {
			ret = append(ret, toolbox.AsString(item))
		}
		return ret
	}
	return nil
}
