// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifacts writes the on-disk side of the pipeline: mailbox
// files for agent memos, per-idea Markdown exports, immutable version
// snapshots and the workspace bootstrap files.
//
// Layout under the workspace root:
//
//	mail/<inbox|outbox>/<ts>_<id>_<sender>_<topic>.md
//	ideas/<id>/<KIND>.md
//	ideas/<id>/council/<Referee_X>.md
//	ideas/<id>/versions/<YYYYMMDDHHMMSS>/{<KIND>.md,council/,VERSION.md}
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/research-council/pkg/types"
)

const (
	mailDir     = "mail"
	ideasDir    = "ideas"
	councilDir  = "council"
	versionsDir = "versions"
	versionFile = "VERSION.md"

	// VersionIDLayout names snapshot directories.
	VersionIDLayout = "20060102150405"

	createdLayout = "2006-01-02 15:04:05"
)

// ErrVersionNotFound is returned for an unknown or malformed version id.
var ErrVersionNotFound = errors.New("version not found")

var versionIDRe = regexp.MustCompile(`^\d{14}$`)

// Workspace is the artifact root directory.
type Workspace struct {
	Root string

	// Now is the clock for file names and metadata. Defaults to time.Now.
	Now func() time.Time
}

// New returns a workspace rooted at root.
func New(root string) *Workspace {
	return &Workspace{Root: root, Now: time.Now}
}

func (w *Workspace) now() time.Time {
	if w.Now == nil {
		return time.Now().UTC()
	}
	return w.Now().UTC()
}

// IdeaDir returns the directory holding the exported files of one idea.
func (w *Workspace) IdeaDir(ideaID int64) string {
	return filepath.Join(w.Root, ideasDir, strconv.FormatInt(ideaID, 10))
}

// writeMarkdown writes content trimmed, with a single trailing newline.
func writeMarkdown(path, content string) error {
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func safeName(s string) string {
	return strings.NewReplacer(" ", "_", "/", "-", string(filepath.Separator), "-").Replace(s)
}

// WriteMailbox writes an agent memo to mail/<direction>/ and returns the
// file path. Directions other than inbox go to the outbox.
func (w *Workspace) WriteMailbox(m types.AgentMemo) (string, error) {
	box := types.DirectionOutbox
	if m.Direction == types.DirectionInbox {
		box = types.DirectionInbox
	}
	dir := filepath.Join(w.Root, mailDir, box)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating mailbox: %w", err)
	}

	id := "new"
	if m.ID != 0 {
		id = strconv.FormatInt(m.ID, 10)
	}
	name := fmt.Sprintf("%s_%s_%s_%s.md",
		w.now().Format(VersionIDLayout), id, safeName(m.Sender), safeName(m.Topic))
	path := filepath.Join(dir, name)
	return path, writeMarkdown(path, m.Content)
}

// writeParts writes the latest part of each kind into dir.
func writeParts(dir string, parts []types.DossierPart) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, p := range types.LatestPerKind(parts) {
		if !p.Kind.Valid() {
			continue
		}
		if err := writeMarkdown(filepath.Join(dir, p.Kind.Filename()), p.Content); err != nil {
			return err
		}
	}
	return nil
}

// writeMemos writes one file per referee. Memos sharing a referee label
// overwrite in order, so the last one wins.
func writeMemos(dir string, memos []types.CouncilMemo) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, m := range memos {
		if err := writeMarkdown(filepath.Join(dir, safeName(m.Referee)+".md"), m.Content); err != nil {
			return err
		}
	}
	return nil
}

// ExportIdea writes the latest dossier parts and the council memos of an
// idea as Markdown.
func (w *Workspace) ExportIdea(ideaID int64, parts []types.DossierPart, memos []types.CouncilMemo) error {
	dir := w.IdeaDir(ideaID)
	if err := writeParts(dir, parts); err != nil {
		return err
	}
	if len(memos) == 0 {
		return nil
	}
	return writeMemos(filepath.Join(dir, councilDir), memos)
}

// Snapshot freezes the latest parts and the given memos into a new version
// directory and returns its id. An existing version is never overwritten:
// on a collision the id advances by one second.
func (w *Workspace) Snapshot(ideaID int64, parts []types.DossierPart, memos []types.CouncilMemo, label, note string) (string, error) {
	root := filepath.Join(w.IdeaDir(ideaID), versionsDir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating versions directory: %w", err)
	}

	created := w.now()
	at := created.Truncate(time.Second)
	var id, dir string
	for {
		id = at.Format(VersionIDLayout)
		dir = filepath.Join(root, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("creating version %s: %w", id, err)
		}
		at = at.Add(time.Second)
	}

	if err := writeParts(dir, parts); err != nil {
		return "", err
	}
	if err := writeMemos(filepath.Join(dir, councilDir), memos); err != nil {
		return "", err
	}

	meta := strings.Join([]string{
		"Version: " + id,
		"Created: " + created.Format(createdLayout) + " UTC",
		"Label: " + label,
		"",
		note,
	}, "\n")
	if err := writeMarkdown(filepath.Join(dir, versionFile), meta); err != nil {
		return "", err
	}
	return id, nil
}

// VersionInfo summarises one snapshot.
type VersionInfo struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label,omitempty" yaml:"label,omitempty"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Version is the full content of one snapshot.
type Version struct {
	ID       string               `json:"id" yaml:"id"`
	Metadata string               `json:"metadata" yaml:"metadata"`
	Parts    []VersionPart        `json:"dossier_parts" yaml:"dossier_parts"`
	Memos    []VersionCouncilMemo `json:"council_memos" yaml:"council_memos"`
}

// VersionPart is one frozen dossier section.
type VersionPart struct {
	Kind    types.DossierKind `json:"kind" yaml:"kind"`
	Content string            `json:"content" yaml:"content"`
}

// VersionCouncilMemo is one frozen referee memo.
type VersionCouncilMemo struct {
	Referee string `json:"referee" yaml:"referee"`
	Content string `json:"content" yaml:"content"`
}

// ListVersions returns the snapshots of an idea, newest first. An idea with
// no snapshots yields an empty list.
func (w *Workspace) ListVersions(ideaID int64) ([]VersionInfo, error) {
	root := filepath.Join(w.IdeaDir(ideaID), versionsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []VersionInfo{}, nil
		}
		return nil, fmt.Errorf("reading versions of idea %d: %w", ideaID, err)
	}

	versions := []VersionInfo{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info := VersionInfo{ID: e.Name()}
		if data, err := os.ReadFile(filepath.Join(root, e.Name(), versionFile)); err == nil {
			info.Label, _ = metadataValue(string(data), "Label")
			info.CreatedAt, _ = metadataValue(string(data), "Created")
		}
		versions = append(versions, info)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].ID > versions[j].ID })
	return versions, nil
}

// GetVersion reads one snapshot.
func (w *Workspace) GetVersion(ideaID int64, versionID string) (Version, error) {
	if !versionIDRe.MatchString(versionID) {
		return Version{}, fmt.Errorf("version %q: %w", versionID, ErrVersionNotFound)
	}
	dir := filepath.Join(w.IdeaDir(ideaID), versionsDir, versionID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return Version{}, fmt.Errorf("version %s: %w", versionID, ErrVersionNotFound)
		}
		return Version{}, fmt.Errorf("reading version %s: %w", versionID, err)
	}

	v := Version{ID: versionID, Parts: []VersionPart{}, Memos: []VersionCouncilMemo{}}
	if data, err := os.ReadFile(filepath.Join(dir, versionFile)); err == nil {
		v.Metadata = string(data)
	}
	for _, kind := range types.DossierKinds {
		data, err := os.ReadFile(filepath.Join(dir, kind.Filename()))
		if err != nil {
			continue
		}
		v.Parts = append(v.Parts, VersionPart{Kind: kind, Content: string(data)})
	}

	paths, err := filepath.Glob(filepath.Join(dir, councilDir, "*.md"))
	if err != nil {
		return Version{}, fmt.Errorf("listing council memos: %w", err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return Version{}, fmt.Errorf("reading %s: %w", p, err)
		}
		stem := strings.TrimSuffix(filepath.Base(p), ".md")
		v.Memos = append(v.Memos, VersionCouncilMemo{
			Referee: strings.ReplaceAll(stem, "_", " "),
			Content: string(data),
		})
	}
	return v, nil
}

// metadataValue returns the value of the first "key:" line.
func metadataValue(content, key string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(line, key+":"); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// requiredFiles are the workspace planning documents created by
// EnsureRequiredFiles.
var requiredFiles = []struct {
	name    string
	summary string
}{
	{"PLAN.md", "Active work queue and checkpoints."},
	{"BACKLOG.md", "Idea pool with tags and rejection reasons."},
	{"FRONTIER_MAP.md", "Living frontier review of IPE debates and bottlenecks."},
	{"DESIGN_PLAYBOOK.md", "House standards for DiD/SCM/Shift-Share/Ideal points (design-only)."},
	{"DATA_CATALOG.md", "Candidate datasets and access notes (no scraping/extraction)."},
	{"EVAL_RUBRIC.md", "Council scoring rubric, thresholds, veto rules."},
	{"DECISIONS.md", "PI decisions and rationale."},
}

// EnsureRequiredFiles creates the workspace planning documents that do not
// exist yet and returns the names it created. Existing files are untouched.
func (w *Workspace) EnsureRequiredFiles() ([]string, error) {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return nil, fmt.Errorf("creating workspace: %w", err)
	}
	var created []string
	for _, f := range requiredFiles {
		path := filepath.Join(w.Root, f.name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		title := strings.TrimSuffix(f.name, ".md")
		content := fmt.Sprintf("# %s\n\n%s\n", title, f.summary)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return created, fmt.Errorf("writing %s: %w", f.name, err)
		}
		created = append(created, f.name)
	}
	return created, nil
}
