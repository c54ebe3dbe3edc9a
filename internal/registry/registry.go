// Package registry manages the list of monitored registrants (trusts),
// persisted as a YAML file.
package registry

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/etp-tracker/internal/atomicfile"
	"github.com/sells-group/etp-tracker/internal/model"
)

// Registry is the set of registrants the pipeline monitors.
type Registry struct {
	Trusts []model.Registrant `yaml:"trusts"`
}

// Load reads the registry at path. A missing file yields an empty registry.
// CIKs are normalized; duplicates are rejected.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Registry{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates registry YAML.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal")
	}
	seen := make(map[string]bool, len(r.Trusts))
	for i := range r.Trusts {
		t := &r.Trusts[i]
		cik, err := model.NormalizeCIK(t.CIK)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: entry %d", i+1)
		}
		if seen[cik] {
			return nil, eris.Errorf("registry: duplicate CIK %s", cik)
		}
		seen[cik] = true
		t.CIK = cik
		t.Name = strings.TrimSpace(t.Name)
		if t.Act == "" {
			t.Act = model.Act40
		}
		if t.Act != model.Act33 && t.Act != model.Act40 {
			return nil, eris.Errorf("registry: CIK %s has unknown act %q", cik, t.Act)
		}
	}
	return &r, nil
}

// Save writes the registry to path atomically.
func (r *Registry) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "registry: marshal")
	}
	return eris.Wrap(atomicfile.Write(path, data), "registry: save")
}

// Active returns the registrants flagged active, in file order.
func (r *Registry) Active() []model.Registrant {
	var out []model.Registrant
	for _, t := range r.Trusts {
		if t.Active {
			out = append(out, t)
		}
	}
	return out
}

// Get returns the registrant with the given CIK.
func (r *Registry) Get(cik string) (model.Registrant, bool) {
	norm, err := model.NormalizeCIK(cik)
	if err != nil {
		return model.Registrant{}, false
	}
	for _, t := range r.Trusts {
		if t.CIK == norm {
			return t, true
		}
	}
	return model.Registrant{}, false
}

// Add appends an active registrant. It reports false when the CIK is
// already registered.
func (r *Registry) Add(cik, name string, act model.Act) (bool, error) {
	norm, err := model.NormalizeCIK(cik)
	if err != nil {
		return false, err
	}
	if _, ok := r.Get(norm); ok {
		return false, nil
	}
	if act == "" {
		act = model.Act40
	}
	if act != model.Act33 && act != model.Act40 {
		return false, eris.Errorf("registry: unknown act %q", act)
	}
	r.Trusts = append(r.Trusts, model.Registrant{
		CIK:    norm,
		Name:   strings.TrimSpace(name),
		Act:    act,
		Active: true,
	})
	return true, nil
}

// SetActive toggles monitoring for cik. It reports false when cik is unknown.
func (r *Registry) SetActive(cik string, active bool) bool {
	norm, err := model.NormalizeCIK(cik)
	if err != nil {
		return false
	}
	for i := range r.Trusts {
		if r.Trusts[i].CIK == norm {
			r.Trusts[i].Active = active
			return true
		}
	}
	return false
}

// Sorted returns all registrants ordered by name, then CIK.
func (r *Registry) Sorted() []model.Registrant {
	out := append([]model.Registrant(nil), r.Trusts...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].CIK < out[j].CIK
	})
	return out
}
