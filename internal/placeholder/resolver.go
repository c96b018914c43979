// Package placeholder resolves ${...} tokens in configuration templates.
package placeholder

import (
	"strings"

	"go.uber.org/zap"

	"claimflow/internal/jsonpath"
)

const (
	propertyPrefix = "appproperties."
	variablePrefix = "processVariable."
)

// VariableSource exposes the current pipeline variables.
type VariableSource interface {
	Lookup(name string) (any, bool)
}

// PropertySource exposes static configuration properties.
type PropertySource interface {
	Property(key string) (string, bool)
}

// Vars is a map-backed VariableSource.
type Vars map[string]any

func (v Vars) Lookup(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// Properties is a map-backed PropertySource.
type Properties map[string]string

func (p Properties) Property(key string) (string, bool) {
	val, ok := p[key]
	return val, ok
}

// Resolve replaces every ${...} token in template in a single left-to-right
// pass. Substituted values are never scanned again.
//
//	${appproperties.key}   static property, "" when missing
//	${map[keyVar]}         map variable indexed by the value of keyVar, token kept on failure
//	${name}                variable (optionally processVariable.name), token kept when missing
func Resolve(template string, vars VariableSource, props PropertySource) string {
	if !strings.Contains(template, "${") {
		return template
	}

	var out strings.Builder
	out.Grow(len(template))
	rest := template
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start+2:], '}')
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += start + 2

		out.WriteString(rest[:start])
		token := rest[start+2 : end]
		if val, ok := resolveToken(token, vars, props); ok {
			out.WriteString(val)
		} else {
			out.WriteString(rest[start : end+1])
		}
		rest = rest[end+1:]
	}
	return out.String()
}

// ResolveValue resolves every string leaf of a JSON-like tree and returns a new tree.
func ResolveValue(v any, vars VariableSource, props PropertySource) any {
	switch t := v.(type) {
	case string:
		return Resolve(t, vars, props)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = ResolveValue(child, vars, props)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = ResolveValue(child, vars, props)
		}
		return out
	default:
		return v
	}
}

// IsTemplate reports whether s contains a ${ token opener.
func IsTemplate(s string) bool { return strings.Contains(s, "${") }

func resolveToken(token string, vars VariableSource, props PropertySource) (string, bool) {
	token = strings.TrimSpace(token)

	if strings.HasPrefix(token, propertyPrefix) {
		key := strings.TrimPrefix(token, propertyPrefix)
		if props != nil {
			if val, ok := props.Property(key); ok {
				return val, true
			}
		}
		zap.L().Warn("placeholder.Resolve: property not found", zap.String("key", key))
		return "", true
	}

	if open := strings.IndexByte(token, '['); open > 0 && strings.HasSuffix(token, "]") {
		return resolveIndexed(token[:open], token[open+1:len(token)-1], vars)
	}

	name := strings.TrimPrefix(token, variablePrefix)
	if vars == nil {
		return "", false
	}
	val, ok := vars.Lookup(name)
	if !ok {
		zap.L().Debug("placeholder.Resolve: variable not set", zap.String("name", name))
		return "", false
	}
	return jsonpath.Stringify(val), true
}

func resolveIndexed(mapName, keyVar string, vars VariableSource) (string, bool) {
	if vars == nil {
		return "", false
	}
	mapName = strings.TrimPrefix(strings.TrimSpace(mapName), variablePrefix)
	keyVar = strings.TrimSpace(keyVar)

	raw, ok := vars.Lookup(mapName)
	if !ok {
		zap.L().Warn("placeholder.Resolve: map variable not set", zap.String("map", mapName))
		return "", false
	}
	m, ok := jsonpath.Expand(raw).(map[string]any)
	if !ok {
		zap.L().Warn("placeholder.Resolve: variable is not a map", zap.String("map", mapName))
		return "", false
	}
	keyVal, ok := vars.Lookup(keyVar)
	if !ok {
		zap.L().Warn("placeholder.Resolve: key variable not set", zap.String("key", keyVar))
		return "", false
	}
	val, ok := m[jsonpath.Stringify(keyVal)]
	if !ok {
		zap.L().Warn("placeholder.Resolve: key missing from map",
			zap.String("map", mapName), zap.String("key", jsonpath.Stringify(keyVal)))
		return "", false
	}
	return jsonpath.Stringify(val), true
}

// ResolveTyped is Resolve for templates that are exactly one plain variable
// token: the variable's value is returned as is instead of its string form.
// Anything else resolves to a string.
func ResolveTyped(template string, vars VariableSource, props PropertySource) any {
	t := strings.TrimSpace(template)
	if vars != nil && strings.HasPrefix(t, "${") && strings.HasSuffix(t, "}") && strings.Count(t, "${") == 1 {
		token := strings.TrimSpace(t[2 : len(t)-1])
		if !strings.HasPrefix(token, propertyPrefix) && !strings.ContainsRune(token, '[') {
			if val, ok := vars.Lookup(strings.TrimPrefix(token, variablePrefix)); ok {
				return jsonpath.DeepCopy(val)
			}
		}
	}
	return Resolve(template, vars, props)
}
