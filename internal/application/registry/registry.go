// Package registry owns the in-memory view of every known descriptor. Reads
// go through an immutable snapshot swapped atomically, so lookups never lock
// and never observe a half-applied write.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/doeshing/riskgate/internal/audit"
	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/family"
	"github.com/doeshing/riskgate/internal/pkg/logger"
	"github.com/doeshing/riskgate/internal/ports"
)

// ErrStaleVersion is returned by Put when the stored descriptor was built
// from a newer tool version than the one offered.
var ErrStaleVersion = errors.New("registry: descriptor built from an older tool version")

// Source tells where an entry's record came from.
type Source string

const (
	SourceStandalone Source = "standalone"
	SourceFamily     Source = "family"
)

// Entry is one command known to the registry. Audit is the evidence trail
// the descriptor was built from, nil when none was stored or it no longer
// matches the record.
type Entry struct {
	Command     string
	Family      string
	ToolVersion string
	Descriptor  descriptor.Descriptor
	Audit       *audit.Report
	UpdatedAt   time.Time
	Source      Source
}

// Quarantine is a stored record that failed its integrity check. It is kept
// so consumers can refuse the command instead of treating it as unknown.
type Quarantine struct {
	Command string
	Record  []byte
	Err     error
}

type snapshot struct {
	entries  map[string]Entry
	corrupt  map[string]Quarantine
	families map[string]family.Family
	stale    map[string]error
}

func emptySnapshot() *snapshot {
	return &snapshot{
		entries:  map[string]Entry{},
		corrupt:  map[string]Quarantine{},
		families: map[string]family.Family{},
		stale:    map[string]error{},
	}
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		entries:  make(map[string]Entry, len(s.entries)+1),
		corrupt:  make(map[string]Quarantine, len(s.corrupt)),
		families: make(map[string]family.Family, len(s.families)),
		stale:    make(map[string]error, len(s.stale)),
	}
	for k, v := range s.corrupt {
		next.corrupt[k] = v
	}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	for k, v := range s.families {
		next.families[k] = v
	}
	for k, v := range s.stale {
		next.stale[k] = v
	}
	return next
}

// Registry is the explicitly owned descriptor store handed to consumers.
type Registry struct {
	store      ports.Store
	compressor *family.Compressor
	log        ports.Logger
	now        func() time.Time

	current atomic.Pointer[snapshot]
	writeMu sync.Mutex

	locksMu     sync.Mutex
	familyLocks map[string]*sync.Mutex
}

// New builds an empty registry backed by store. Call Load to populate it.
func New(store ports.Store, compressor *family.Compressor, log ports.Logger) *Registry {
	if log == nil {
		log = logger.Nop{}
	}
	if compressor == nil {
		compressor = family.NewCompressor(domain.FamilyConfig{})
	}
	r := &Registry{
		store:       store,
		compressor:  compressor,
		log:         log,
		now:         time.Now,
		familyLocks: map[string]*sync.Mutex{},
	}
	r.current.Store(emptySnapshot())
	return r
}

// Load replaces the snapshot with the store's contents. Records that fail
// their checksum are quarantined and logged: those commands are refused until
// re-classified.
// Families that fail to expand are marked stale and their members fall back
// to standalone records.
func (r *Registry) Load(ctx context.Context) error {
	stored, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list descriptors: %w", err)
	}
	families, err := r.store.ListFamilies(ctx)
	if err != nil {
		return fmt.Errorf("list families: %w", err)
	}

	next := emptySnapshot()
	for _, sd := range stored {
		d, err := descriptor.Decode(sd.Record)
		if err == nil && !d.MatchesCommand(sd.Command) {
			err = fmt.Errorf("record hash %08x does not belong to %q", d.CommandHash, sd.Command)
		}
		if err != nil {
			r.log.Error("stored descriptor failed integrity check", err, map[string]interface{}{
				"event":   "integrity_violation",
				"command": sd.Command,
			})
			next.corrupt[sd.Command] = Quarantine{
				Command: sd.Command,
				Record:  append([]byte(nil), sd.Record...),
				Err:     err,
			}
			continue
		}
		next.entries[sd.Command] = Entry{
			Command:     sd.Command,
			Family:      sd.Family,
			ToolVersion: sd.ToolVersion,
			Descriptor:  d,
			Audit:       r.trail(sd, d),
			UpdatedAt:   sd.UpdatedAt,
			Source:      SourceStandalone,
		}
	}

	for _, sf := range families {
		fam, err := family.Restore(sf.Family, sf.Parent, sf.Members, sf.Deltas)
		if err == nil {
			err = r.adoptFamily(next, fam, sf.UpdatedAt)
		}
		if err != nil {
			next.stale[sf.Family] = err
			r.log.Warn("family marked stale", map[string]interface{}{
				"family": sf.Family,
				"error":  err.Error(),
			})
			continue
		}
		next.families[sf.Family] = fam
	}

	r.writeMu.Lock()
	r.current.Store(next)
	r.writeMu.Unlock()
	r.log.Debug("registry loaded", map[string]interface{}{
		"descriptors": len(next.entries),
		"quarantined": len(next.corrupt),
		"families":    len(next.families),
		"stale":       len(next.stale),
	})
	return nil
}

// trail restores the stored audit report when it still describes d.
func (r *Registry) trail(sd ports.StoredDescriptor, d descriptor.Descriptor) *audit.Report {
	if len(sd.Audit) == 0 {
		return nil
	}
	report, err := audit.Parse(sd.Audit)
	if err == nil && !report.Describes(sd.Command, d.Checksum) {
		err = fmt.Errorf("audit report is for %s/%s", report.Command, report.Checksum)
	}
	if err != nil {
		r.log.Warn("stored audit trail discarded", map[string]interface{}{
			"command": sd.Command,
			"error":   err.Error(),
		})
		return nil
	}
	return &report
}

// Refresh reloads from the store.
func (r *Registry) Refresh(ctx context.Context) error {
	return r.Load(ctx)
}

// adoptFamily expands every member; members without a standalone record
// are served from the family.
func (r *Registry) adoptFamily(snap *snapshot, fam family.Family, updated time.Time) error {
	records, err := fam.ExpandAll()
	if err != nil {
		return err
	}
	adopted := make(map[string]Entry, len(records))
	for i, rec := range records {
		member := fam.Members[i]
		if _, ok := snap.entries[member]; ok {
			continue
		}
		if _, ok := snap.corrupt[member]; ok {
			continue
		}
		d, err := descriptor.Decode(rec[:])
		if err != nil {
			return err
		}
		adopted[member] = Entry{
			Command:    member,
			Family:     fam.Name,
			Descriptor: d,
			UpdatedAt:  updated,
			Source:     SourceFamily,
		}
	}
	for member, e := range adopted {
		snap.entries[member] = e
	}
	return nil
}

// Lookup returns the entry for a command.
func (r *Registry) Lookup(command string) (Entry, bool) {
	e, ok := r.current.Load().entries[domain.NormalizeCommand(command)]
	return e, ok
}

// Quarantined returns the stored record of a command that failed its
// integrity check on load.
func (r *Registry) Quarantined(command string) (Quarantine, bool) {
	q, ok := r.current.Load().corrupt[domain.NormalizeCommand(command)]
	return q, ok
}

// Len reports the number of known commands.
func (r *Registry) Len() int {
	return len(r.current.Load().entries)
}

// Commands lists known commands in sorted order.
func (r *Registry) Commands() []string {
	snap := r.current.Load()
	out := make([]string, 0, len(snap.entries))
	for name := range snap.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Stale lists families whose stored form failed to expand, with the cause.
func (r *Registry) Stale() map[string]error {
	snap := r.current.Load()
	out := make(map[string]error, len(snap.stale))
	for k, v := range snap.stale {
		out[k] = v
	}
	return out
}

// Family returns a compressed family held by the registry.
func (r *Registry) Family(name string) (family.Family, bool) {
	f, ok := r.current.Load().families[domain.NormalizeCommand(name)]
	return f, ok
}

// Families lists compressed family names, sorted.
func (r *Registry) Families() []string {
	snap := r.current.Load()
	out := make([]string, 0, len(snap.families))
	for name := range snap.families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// PutRequest is one freshly encoded descriptor. Result, when set, is the
// classification Record was encoded from and is stored as its audit trail.
type PutRequest struct {
	Command     string
	Family      string
	ToolVersion string
	Record      descriptor.Record
	Result      *domain.ClassificationResult
}

// Put validates, persists and publishes a descriptor. A record built from an
// older tool version than the stored one is refused with ErrStaleVersion.
func (r *Registry) Put(ctx context.Context, req PutRequest) error {
	name := domain.NormalizeCommand(req.Command)
	famName := domain.NormalizeCommand(req.Family)
	d, err := descriptor.Decode(req.Record[:])
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	if !d.MatchesCommand(name) {
		return fmt.Errorf("put %s: record hash %08x belongs to another command", name, d.CommandHash)
	}

	if famName != "" {
		unlock := r.lockFamily(famName)
		defer unlock()
	}

	if existing, ok := r.Lookup(name); ok && newerThan(existing.ToolVersion, req.ToolVersion) {
		return fmt.Errorf("put %s %s (stored %s): %w", name, req.ToolVersion, existing.ToolVersion, ErrStaleVersion)
	}

	entry := Entry{
		Command:     name,
		Family:      famName,
		ToolVersion: req.ToolVersion,
		Descriptor:  d,
		UpdatedAt:   r.now().UTC(),
		Source:      SourceStandalone,
	}
	var trail []byte
	if req.Result != nil {
		result := *req.Result
		result.Command = name
		if trail, err = audit.RenderJSON(result, d.Checksum); err != nil {
			return fmt.Errorf("put %s: %w", name, err)
		}
		report := audit.Build(result, d.Checksum)
		entry.Audit = &report
	}
	if err := r.store.Put(ctx, ports.StoredDescriptor{
		Command:     name,
		Family:      famName,
		ToolVersion: req.ToolVersion,
		Record:      d.Bytes(),
		Audit:       trail,
		UpdatedAt:   entry.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("persist %s: %w", name, err)
	}

	r.writeMu.Lock()
	next := r.current.Load().clone()
	next.entries[name] = entry
	delete(next.corrupt, name)
	r.current.Store(next)
	r.writeMu.Unlock()
	return nil
}

// newerThan reports whether stored is a strictly newer semantic version than
// offered. Unparseable versions never block an update.
func newerThan(stored, offered string) bool {
	if stored == "" || offered == "" {
		return false
	}
	sv, err := semver.NewVersion(stored)
	if err != nil {
		return false
	}
	ov, err := semver.NewVersion(offered)
	if err != nil {
		return false
	}
	return sv.GreaterThan(ov)
}

func (r *Registry) lockFamily(name string) func() {
	r.locksMu.Lock()
	mu, ok := r.familyLocks[name]
	if !ok {
		mu = &sync.Mutex{}
		r.familyLocks[name] = mu
	}
	r.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// FamilySnapshot returns every member of a family, by name order, read from
// a single snapshot while the family lock is held.
func (r *Registry) FamilySnapshot(name string) []family.Member {
	name = domain.NormalizeCommand(name)
	unlock := r.lockFamily(name)
	defer unlock()
	return membersOf(r.current.Load(), name)
}

func membersOf(snap *snapshot, name string) []family.Member {
	var members []family.Member
	for cmd, e := range snap.entries {
		if e.Family == name {
			members = append(members, family.Member{Name: cmd, Record: e.Descriptor.Bytes()})
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members
}

// CompressFamily builds and persists the compressed form of a family from a
// consistent member snapshot, clearing any stale mark.
func (r *Registry) CompressFamily(ctx context.Context, name string) (family.Family, error) {
	name = domain.NormalizeCommand(name)
	unlock := r.lockFamily(name)
	defer unlock()

	members := membersOf(r.current.Load(), name)
	fam, err := r.compressor.Compress(name, members)
	if err != nil {
		return family.Family{}, err
	}
	updated := r.now().UTC()
	if err := r.store.PutFamily(ctx, ports.StoredFamily{
		Family:    name,
		Parent:    fam.Parent.Record[:],
		Members:   fam.Members,
		Deltas:    fam.Deltas,
		UpdatedAt: updated,
	}); err != nil {
		return family.Family{}, fmt.Errorf("persist family %s: %w", name, err)
	}

	r.writeMu.Lock()
	next := r.current.Load().clone()
	next.families[name] = fam
	delete(next.stale, name)
	r.current.Store(next)
	r.writeMu.Unlock()
	return fam, nil
}
