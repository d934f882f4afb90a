// Package rockspec parses package descriptors and registry manifests, both
// of which are Lua source. Evaluation happens in a restricted interpreter
// with no IO, OS or module-loading facilities, bounded by the caller's
// context.
package rockspec

import (
	"context"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.trai.ch/loam/internal/core/domain"
	"go.trai.ch/zerr"
)

// Parser evaluates rockspec and manifest sources.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// newSandbox returns a Lua state with only the base, string and table
// libraries opened. Descriptors are data with occasional string
// concatenation; nothing in them may touch the host.
func newSandbox(ctx context.Context) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
	} {
		L.Push(L.NewFunction(open.fn))
		L.Push(lua.LString(open.name))
		L.Call(1, 0)
	}
	// Base opens access the sandbox must not grant.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetContext(ctx)
	return L
}

// ParseDescriptor evaluates one rockspec and extracts its descriptor.
// Malformed sources fail with domain.ErrDescriptorParse.
func (p *Parser) ParseDescriptor(ctx context.Context, src string) (*domain.PackageDescriptor, error) {
	L := newSandbox(ctx)
	defer L.Close()

	if err := L.DoString(src); err != nil {
		return nil, zerr.With(domain.ErrDescriptorParse, "reason", err.Error())
	}

	nameText := lua.LVAsString(L.GetGlobal("package"))
	if nameText == "" {
		return nil, zerr.With(domain.ErrDescriptorParse, "reason", "missing package field")
	}
	name, err := domain.ParsePackageName(nameText)
	if err != nil {
		return nil, zerr.With(zerr.With(domain.ErrDescriptorParse, "package", nameText), "reason", err.Error())
	}

	versionText := lua.LVAsString(L.GetGlobal("version"))
	version, err := domain.ParseVersion(versionText)
	if err != nil {
		return nil, zerr.With(zerr.With(domain.ErrDescriptorParse, "version", versionText), "reason", err.Error())
	}

	desc := &domain.PackageDescriptor{
		Name:    name,
		Version: version,
		Lua:     domain.AnyConstraint(),
	}

	if err := p.readDependencies(L.GetGlobal("dependencies"), desc, false); err != nil {
		return nil, err
	}
	if err := p.readDependencies(L.GetGlobal("build_dependencies"), desc, true); err != nil {
		return nil, err
	}
	p.readExternal(L.GetGlobal("external_dependencies"), desc)
	p.readSource(L.GetGlobal("source"), desc)
	if err := p.readBuild(L.GetGlobal("build"), desc); err != nil {
		return nil, err
	}

	return desc, nil
}

// readDependencies splits the Lua runtime constraint out of the declared
// list; "lua" is a runtime gate, not a resolvable package.
func (p *Parser) readDependencies(v lua.LValue, desc *domain.PackageDescriptor, build bool) error {
	for _, raw := range luaStringList(v) {
		dep, err := domain.ParseDependency(raw)
		if err != nil {
			return zerr.With(zerr.With(zerr.With(domain.ErrDescriptorParse, "package", desc.Name.String()), "dependency", raw), "reason", err.Error())
		}
		switch {
		case dep.Name == domain.LuaName && !build:
			desc.Lua = dep.Constraint
		case build:
			desc.BuildDeps = append(desc.BuildDeps, dep)
		default:
			desc.Dependencies = append(desc.Dependencies, dep)
		}
	}
	return nil
}

func (p *Parser) readExternal(v lua.LValue, desc *domain.PackageDescriptor) {
	table, ok := v.(*lua.LTable)
	if !ok {
		return
	}
	desc.External = make(map[string]domain.ExternalDependency)
	table.ForEach(func(key, value lua.LValue) {
		spec, ok := value.(*lua.LTable)
		if !ok {
			return
		}
		desc.External[lua.LVAsString(key)] = domain.ExternalDependency{
			Header:  lua.LVAsString(spec.RawGetString("header")),
			Library: lua.LVAsString(spec.RawGetString("library")),
		}
	})
}

func (p *Parser) readSource(v lua.LValue, desc *domain.PackageDescriptor) {
	table, ok := v.(*lua.LTable)
	if !ok {
		return
	}
	desc.Source = domain.SourceSpec{
		URL:    lua.LVAsString(table.RawGetString("url")),
		Tag:    lua.LVAsString(table.RawGetString("tag")),
		Branch: lua.LVAsString(table.RawGetString("branch")),
		Dir:    lua.LVAsString(table.RawGetString("dir")),
		File:   lua.LVAsString(table.RawGetString("file")),
	}
}

func (p *Parser) readBuild(v lua.LValue, desc *domain.PackageDescriptor) error {
	table, ok := v.(*lua.LTable)
	if !ok {
		// No build table means a pure-Lua package installed verbatim.
		desc.Build = domain.BuildSpec{Type: domain.BuildBuiltin}
		return nil
	}

	spec := domain.BuildSpec{
		BuildVariables:   luaStringMap(table.RawGetString("build_variables")),
		InstallVariables: luaStringMap(table.RawGetString("install_variables")),
		Script:           lua.LVAsString(table.RawGetString("script")),
		Install:          luaSectionMap(table.RawGetString("install")),
	}
	if vars := luaStringMap(table.RawGetString("variables")); len(vars) > 0 {
		if spec.BuildVariables == nil {
			spec.BuildVariables = vars
		} else {
			for k, val := range vars {
				spec.BuildVariables[k] = val
			}
		}
	}

	if modules, ok := table.RawGetString("modules").(*lua.LTable); ok {
		spec.Modules = make(map[string]domain.ModuleSpec)
		modules.ForEach(func(key, value lua.LValue) {
			spec.Modules[lua.LVAsString(key)] = readModule(value)
		})
	}

	typ := lua.LVAsString(table.RawGetString("type"))
	switch typ {
	case "", "builtin", "module":
		spec.Type = domain.BuildBuiltin
		for _, m := range spec.Modules {
			if m.IsNative() {
				spec.Type = domain.BuildCExtension
				break
			}
		}
	case "make":
		spec.Type = domain.BuildMake
	case "cmake":
		spec.Type = domain.BuildCMake
	case "script":
		spec.Type = domain.BuildScript
	default:
		// Preserved verbatim; dispatch rejects it at build time.
		spec.Type = domain.BuildType(typ)
	}

	desc.Build = spec
	return nil
}

func readModule(v lua.LValue) domain.ModuleSpec {
	switch value := v.(type) {
	case lua.LString:
		return domain.ModuleSpec{Path: string(value)}
	case *lua.LTable:
		return domain.ModuleSpec{
			Sources:   luaStringList(value.RawGetString("sources")),
			Libraries: luaStringList(value.RawGetString("libraries")),
			Defines:   luaStringList(value.RawGetString("defines")),
			Incdirs:   luaStringList(value.RawGetString("incdirs")),
			Libdirs:   luaStringList(value.RawGetString("libdirs")),
		}
	default:
		return domain.ModuleSpec{}
	}
}

// luaStringList accepts a bare string or an array of strings.
func luaStringList(v lua.LValue) []string {
	switch value := v.(type) {
	case lua.LString:
		return []string{string(value)}
	case *lua.LTable:
		var out []string
		for i := 1; i <= value.Len(); i++ {
			if s := lua.LVAsString(value.RawGetInt(i)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func luaStringMap(v lua.LValue) map[string]string {
	table, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	table.ForEach(func(key, value lua.LValue) {
		out[lua.LVAsString(key)] = lua.LVAsString(value)
	})
	return out
}

func luaSectionMap(v lua.LValue) map[string]map[string]string {
	table, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make(map[string]map[string]string)
	table.ForEach(func(key, value lua.LValue) {
		section := lua.LVAsString(key)
		entries, ok := value.(*lua.LTable)
		if !ok {
			return
		}
		files := make(map[string]string)
		entries.ForEach(func(name, src lua.LValue) {
			// Array entries install under their own basename.
			dest := lua.LVAsString(name)
			if _, isNum := name.(lua.LNumber); isNum {
				dest = baseName(lua.LVAsString(src))
			}
			files[dest] = lua.LVAsString(src)
		})
		out[section] = files
	})
	return out
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParseManifest evaluates a registry manifest and returns each package's
// versions in ascending order. Unparseable version strings are skipped;
// structural problems fail with domain.ErrMalformedIndex.
func (p *Parser) ParseManifest(ctx context.Context, src string) (map[domain.PackageName][]domain.Version, error) {
	L := newSandbox(ctx)
	defer L.Close()

	if err := L.DoString(src); err != nil {
		return nil, zerr.With(domain.ErrMalformedIndex, "reason", err.Error())
	}

	repository, ok := L.GetGlobal("repository").(*lua.LTable)
	if !ok {
		return nil, zerr.With(domain.ErrMalformedIndex, "reason", "missing repository table")
	}

	index := make(map[domain.PackageName][]domain.Version)
	var structural error
	repository.ForEach(func(key, value lua.LValue) {
		name, err := domain.ParsePackageName(lua.LVAsString(key))
		if err != nil {
			return
		}
		versions, ok := value.(*lua.LTable)
		if !ok {
			structural = zerr.With(zerr.With(domain.ErrMalformedIndex, "package", lua.LVAsString(key)), "reason", "package entry is not a table")
			return
		}
		var parsed []domain.Version
		versions.ForEach(func(versionKey, _ lua.LValue) {
			v, err := domain.ParseVersion(lua.LVAsString(versionKey))
			if err != nil {
				return
			}
			parsed = append(parsed, v)
		})
		domain.SortVersions(parsed)
		index[name] = parsed
	})
	if structural != nil {
		return nil, structural
	}

	return index, nil
}

// Names returns the package names of an index in lexical order.
func Names(index map[domain.PackageName][]domain.Version) []domain.PackageName {
	names := make([]domain.PackageName, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
