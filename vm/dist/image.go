package dist

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/chazu/aul/pkg/bytecode"
	"github.com/chazu/aul/vm"
)

// FuncImage is the engine-independent form of one compiled function.
// String, function and global handles in Code are replaced by indexes
// into Strings, Calls and Globals, and source positions are dropped, so
// two engines that compiled the same scripts produce equal images.
type FuncImage struct {
	Key     string        `cbor:"1,keyasint"` // full name "/" declaring script
	Code    bytecode.Code `cbor:"2,keyasint"`
	Strings []string      `cbor:"3,keyasint,omitempty"`
	Calls   []string      `cbor:"4,keyasint,omitempty"` // keys of called functions
	Globals []string      `cbor:"5,keyasint,omitempty"`
	Hosts   []string      `cbor:"6,keyasint,omitempty"` // host functions among Calls
}

// Hash returns the SHA-256 of the image's canonical encoding.
func (fi *FuncImage) Hash() ([32]byte, error) {
	data, err := bytecode.Marshal(fi)
	if err != nil {
		return [32]byte{}, fmt.Errorf("dist: encode %s: %w", fi.Key, err)
	}
	return sha256.Sum256(data), nil
}

// FuncKey names f independently of handles: its full name and the
// script that declared it.
func FuncKey(e *vm.Engine, f *vm.Function) string {
	org := "engine"
	if s := e.Script(f.OrgScript); s != nil && f.OrgScript != vm.EngineScope {
		org = s.Name
	}
	return e.FullName(f) + "/" + org
}

// NewFuncImage normalizes the code of a script function.
func NewFuncImage(e *vm.Engine, f *vm.Function) (*FuncImage, error) {
	if !f.IsScript() {
		return nil, fmt.Errorf("dist: %s is a host function", e.FullName(f))
	}
	fi := &FuncImage{Key: FuncKey(e, f), Code: make(bytecode.Code, len(f.Code))}
	strs := make(map[int64]int64)
	calls := make(map[int64]int64)
	globals := make(map[int64]int64)
	globalNames := e.GlobalNames()

	intern := func(seen map[int64]int64, list *[]string, handle int64, name string) int64 {
		if i, ok := seen[handle]; ok {
			return i
		}
		i := int64(len(*list))
		*list = append(*list, name)
		seen[handle] = i
		return i
	}

	for i, ch := range f.Code {
		ch.Pos = 0
		switch {
		case ch.Op.Operand() == bytecode.OperandString:
			ch.X = intern(strs, &fi.Strings, ch.X, e.StringValue(ch.X))
		case ch.Op.Operand() == bytecode.OperandFunc:
			callee := e.Func(vm.FuncID(ch.X))
			if callee == nil {
				return nil, fmt.Errorf("dist: %s calls unknown function %d", fi.Key, ch.X)
			}
			if _, ok := calls[ch.X]; !ok && !callee.IsScript() {
				fi.Hosts = append(fi.Hosts, e.FullName(callee))
			}
			ch.X = intern(calls, &fi.Calls, ch.X, FuncKey(e, callee))
		case ch.Op == bytecode.OpGlobalNR || ch.Op == bytecode.OpGlobalNV:
			if ch.X < 0 || int(ch.X) >= len(globalNames) {
				return nil, fmt.Errorf("dist: %s uses unknown global %d", fi.Key, ch.X)
			}
			ch.X = intern(globals, &fi.Globals, ch.X, globalNames[ch.X])
		}
		fi.Code[i] = ch
	}
	return fi, nil
}

// Image is the code of every compiled script function of an engine,
// ordered by key.
type Image struct {
	Funcs  []*FuncImage
	Hashes [][32]byte // parallel to Funcs
	Root   [32]byte

	byHash map[[32]byte]int
}

// BuildImage snapshots the compiled code of e.
func BuildImage(e *vm.Engine) (*Image, error) {
	var funcs []*FuncImage
	for _, f := range e.Funcs() {
		if !f.IsScript() || len(f.Code) == 0 {
			continue
		}
		fi, err := NewFuncImage(e, f)
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fi)
	}
	return NewImage(funcs)
}

// NewImage orders funcs, hashes them and computes the root hash over the
// sorted function hashes.
func NewImage(funcs []*FuncImage) (*Image, error) {
	sort.SliceStable(funcs, func(i, j int) bool { return funcs[i].Key < funcs[j].Key })
	im := &Image{Funcs: funcs, byHash: make(map[[32]byte]int, len(funcs))}
	root := sha256.New()
	root.Write([]byte{HashVersion})
	for i, fi := range funcs {
		h, err := fi.Hash()
		if err != nil {
			return nil, err
		}
		im.Hashes = append(im.Hashes, h)
		im.byHash[h] = i
		root.Write(h[:])
	}
	copy(im.Root[:], root.Sum(nil))
	return im, nil
}

// Merge returns the image im becomes once the received functions are
// installed: each replaces the function with its key, or is added.
func (im *Image) Merge(received []*FuncImage) (*Image, error) {
	byKey := make(map[string]*FuncImage, len(received))
	for _, fi := range received {
		byKey[fi.Key] = fi
	}
	funcs := make([]*FuncImage, 0, len(im.Funcs)+len(received))
	for _, fi := range im.Funcs {
		if r, ok := byKey[fi.Key]; ok {
			fi = r
			delete(byKey, fi.Key)
		}
		funcs = append(funcs, fi)
	}
	for _, fi := range received {
		if _, ok := byKey[fi.Key]; ok {
			funcs = append(funcs, fi)
			delete(byKey, fi.Key)
		}
	}
	return NewImage(funcs)
}

// Lookup returns the function with hash h, or nil.
func (im *Image) Lookup(h [32]byte) *FuncImage {
	if i, ok := im.byHash[h]; ok {
		return im.Funcs[i]
	}
	return nil
}

// Has reports whether the image contains a function with hash h.
func (im *Image) Has(h [32]byte) bool {
	_, ok := im.byHash[h]
	return ok
}

// Capabilities lists the host functions the image calls, sorted, or nil.
func (im *Image) Capabilities() *CapabilityManifest {
	set := make(map[string]bool)
	for _, fi := range im.Funcs {
		for _, h := range fi.Hosts {
			set[h] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	caps := make([]string, 0, len(set))
	for c := range set {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return &CapabilityManifest{Required: caps}
}

// Drift is the difference between two images, by function key.
type Drift struct {
	Missing []string // only in the remote image
	Extra   []string // only in the local image
	Changed []string // in both, with different code
}

// Empty reports whether the images agree.
func (d Drift) Empty() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0 && len(d.Changed) == 0
}

// Compare reports how local differs from remote.
func Compare(local, remote *Image) Drift {
	var d Drift
	mine := make(map[string][32]byte, len(local.Funcs))
	for i, fi := range local.Funcs {
		mine[fi.Key] = local.Hashes[i]
	}
	for i, fi := range remote.Funcs {
		h, ok := mine[fi.Key]
		switch {
		case !ok:
			d.Missing = append(d.Missing, fi.Key)
		case h != remote.Hashes[i]:
			d.Changed = append(d.Changed, fi.Key)
		}
		delete(mine, fi.Key)
	}
	for _, fi := range local.Funcs {
		if _, ok := mine[fi.Key]; ok {
			d.Extra = append(d.Extra, fi.Key)
		}
	}
	return d
}
