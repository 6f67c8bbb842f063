// Package skills loads instruction bundles from disk. A bundle is a
// directory holding a SKILL.md file: YAML frontmatter (name, description,
// optional routing hints) followed by a markdown instruction body, plus an
// optional resources/ subtree. Loading is leveled so a caller can pay for
// exactly what it needs: metadata for discovery, instructions for a routed
// turn, individual resources on demand.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SkillFile is the bundle manifest name inside each skill directory.
const SkillFile = "SKILL.md"

// Metadata is the discovery-level view of a bundle.
type Metadata struct {
	Name        string
	Description string
	Hints       []string
	Dir         string
}

type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Hints       []string `yaml:"hints"`
}

// Loader reads bundles from a root directory.
type Loader struct {
	root   string
	logger *zap.Logger
}

// NewLoader builds a loader over the given root. A nil logger disables
// logging.
func NewLoader(root string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{root: root, logger: logger}
}

// Root returns the skills root directory.
func (l *Loader) Root() string {
	return l.root
}

// List scans the root and returns metadata for every well-formed bundle,
// sorted by name. Malformed bundles are logged and skipped; they never
// abort the listing. A missing root yields an empty list.
func (l *Loader) List() ([]Metadata, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, fmt.Errorf("read skills root %s: %w", l.root, err)
	}

	metas := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.root, entry.Name())
		meta, err := l.loadMetadata(dir)
		if err != nil {
			l.logger.Warn("skipping skill bundle",
				zap.String("dir", dir),
				zap.Error(err))
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// Instructions returns the full markdown body for the named bundle.
func (l *Loader) Instructions(name string) (string, error) {
	meta, err := l.find(name)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(filepath.Join(meta.Dir, SkillFile))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", SkillFile, err)
	}
	_, body, err := splitFrontmatter(content)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedBundle, meta.Dir, err)
	}
	return strings.TrimSpace(body), nil
}

// Resource reads one file from the named bundle's resources directory. The
// relative path is validated before any filesystem access: absolute paths,
// traversal segments and symlink escapes are rejected.
func (l *Loader) Resource(name, relPath string) ([]byte, error) {
	meta, err := l.find(name)
	if err != nil {
		return nil, err
	}

	root := filepath.Join(meta.Dir, "resources")
	target, err := securePath(root, relPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", relPath, err)
	}
	return data, nil
}

// Registry builds a snapshot of the current bundles for routing.
func (l *Loader) Registry() (*Registry, error) {
	metas, err := l.List()
	if err != nil {
		return nil, err
	}
	return NewRegistry(metas), nil
}

// find locates a bundle by its frontmatter name. Malformed bundles are
// invisible here, consistent with List.
func (l *Loader) find(name string) (Metadata, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
		}
		return Metadata{}, fmt.Errorf("read skills root %s: %w", l.root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(l.root, entry.Name())
		meta, err := l.loadMetadata(dir)
		if err != nil {
			continue
		}
		if meta.Name == name {
			return meta, nil
		}
	}
	return Metadata{}, fmt.Errorf("%w: %s", ErrSkillNotFound, name)
}

func (l *Loader) loadMetadata(dir string) (Metadata, error) {
	content, err := os.ReadFile(filepath.Join(dir, SkillFile))
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}

	head, _, err := splitFrontmatter(content)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformedBundle, err)
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return Metadata{}, fmt.Errorf("%w: bad frontmatter: %v", ErrMalformedBundle, err)
	}
	if strings.TrimSpace(fm.Name) == "" {
		return Metadata{}, fmt.Errorf("%w: missing name", ErrMalformedBundle)
	}
	if strings.TrimSpace(fm.Description) == "" {
		return Metadata{}, fmt.Errorf("%w: missing description", ErrMalformedBundle)
	}

	hints := fm.Hints
	if hints == nil {
		hints = []string{}
	}
	return Metadata{
		Name:        strings.TrimSpace(fm.Name),
		Description: strings.TrimSpace(fm.Description),
		Hints:       hints,
		Dir:         dir,
	}, nil
}

// splitFrontmatter separates the YAML head from the markdown body. The file
// must open with a "---" line and close the head with another.
func splitFrontmatter(content []byte) (head, body string, err error) {
	const marker = "---"
	s := strings.ReplaceAll(string(content), "\r\n", "\n")

	if !strings.HasPrefix(s, marker+"\n") {
		return "", "", fmt.Errorf("missing opening frontmatter marker")
	}
	rest := s[len(marker)+1:]

	idx := strings.Index(rest, "\n"+marker)
	if idx < 0 {
		return "", "", fmt.Errorf("missing closing frontmatter marker")
	}

	head = rest[:idx]
	body = rest[idx+len("\n"+marker):]
	body = strings.TrimPrefix(body, "\n")
	return head, body, nil
}

// securePath resolves rel inside root, rejecting escapes before any read.
func securePath(root, rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("resource path cannot be empty")
	}
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, rel)
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve resources root: %w", err)
	}
	target := filepath.Join(rootAbs, rel)

	if escapes(rootAbs, target) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, rel)
	}

	// A symlink inside resources may still point outside. Resolve whatever
	// exists and check again; a missing target falls through to the read,
	// which fails without leaking anything.
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		resolvedRoot := rootAbs
		if rr, err := filepath.EvalSymlinks(rootAbs); err == nil {
			resolvedRoot = rr
		}
		if escapes(resolvedRoot, resolved) {
			return "", fmt.Errorf("%w: %s", ErrPathEscapes, rel)
		}
	}
	return target, nil
}

func escapes(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
