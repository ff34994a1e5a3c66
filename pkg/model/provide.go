package model

import (
	"encoding/json"
	"strings"
)

// ProvideStrategy controls which PATH links a provide declaration creates.
type ProvideStrategy string

const (
	// ProvideDefault links the binary under its own name.
	ProvideDefault ProvideStrategy = ""
	// ProvideKeepBoth ("name==target") links both the name and the target.
	ProvideKeepBoth ProvideStrategy = "=="
	// ProvideKeepTargetOnly ("name=>target") links only the target name.
	ProvideKeepTargetOnly ProvideStrategy = "=>"
	// ProvideAlias ("name:target") exposes the binary under the target name.
	ProvideAlias ProvideStrategy = ":"
)

// Provide is one executable a package exposes.
type Provide struct {
	Name     string          `json:"name"`
	Target   string          `json:"target,omitempty"`
	Strategy ProvideStrategy `json:"strategy,omitempty"`
}

// ParseProvide parses a provide declaration.
func ParseProvide(s string) Provide {
	for _, strategy := range []ProvideStrategy{ProvideKeepBoth, ProvideKeepTargetOnly, ProvideAlias} {
		if name, target, ok := strings.Cut(s, string(strategy)); ok {
			return Provide{Name: name, Target: target, Strategy: strategy}
		}
	}
	return Provide{Name: s}
}

// ParseProvides parses every declaration, skipping empty entries.
func ParseProvides(decls []string) []Provide {
	out := make([]Provide, 0, len(decls))
	for _, d := range decls {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, ParseProvide(d))
		}
	}
	return out
}

// String renders the declaration back into its source form.
func (p Provide) String() string {
	if p.Target == "" || p.Strategy == ProvideDefault {
		return p.Name
	}
	return p.Name + string(p.Strategy) + p.Target
}

// LinkNames returns the names created in the bin directory for this provide.
// Every link points at the file called Name inside the install directory.
func (p Provide) LinkNames() []string {
	if p.Target == "" || p.Strategy == ProvideDefault {
		return []string{p.Name}
	}
	if p.Strategy == ProvideKeepBoth {
		return []string{p.Target, p.Name}
	}
	return []string{p.Target}
}

// UnmarshalJSON accepts both the string declaration form used by remote
// metadata and the structured object form stored locally.
func (p *Provide) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = ParseProvide(s)
		return nil
	}
	type plain Provide
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Provide(v)
	return nil
}
