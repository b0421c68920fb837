// Package fenceupdate syncs the persisted geofence polygon file (spec
// §6 "Persisted state") from a git-backed configuration repository
// over SSH. The clone/pull-via-exec-command shape and the SSH
// known-hosts trust handling are both ported directly from the
// teacher: tiiuae-communication_link
// missionengine/internal/gittransport/git_operations.go (cloneRepository/
// pullFiles, which shell out to the system `git` binary with a
// GIT_SSH_COMMAND env var) and
// communicationlink/commands/commands.go's joinMission/initializeTrust
// (golang.org/x/crypto/ssh + knownhosts for the known_hosts line).
package fenceupdate

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/tiiuae/flightcore/internal/geofence"
)

// Source identifies the git-backed fence repository and the SSH
// credentials used to reach it.
type Source struct {
	RepoURL        string
	KnownHostsLine string // pre-fetched server public key, as delivered by the backend
	PrivateKeyPath string
	WorkDir        string
}

// fenceFile is the on-disk JSON schema for the persisted polygon file
// named in spec §6; [lon, lat] pairs describe one outer ring.
type fenceFile struct {
	Polygon     [][2]float64 `json:"polygon"` // [lon, lat] pairs, GeoJSON order
	MaxAltitude *float64     `json:"max_altitude,omitempty"`
	MaxDistance *float64     `json:"max_distance,omitempty"`
}

// Syncer owns the cloned fence repository working directory.
type Syncer struct {
	src     Source
	cloned  bool
}

// NewSyncer creates a Syncer for the given source.
func NewSyncer(src Source) *Syncer {
	return &Syncer{src: src}
}

// EnsureKnownHosts writes the server's known_hosts entry, normalizing
// the hostname the way the teacher does before persisting it.
func (s *Syncer) EnsureKnownHosts() error {
	khPath := filepath.Join(s.src.WorkDir, "known_hosts")
	normalized := knownhosts.Normalize(s.src.RepoURL)
	line := fmt.Sprintf("%s %s\n", normalized, s.src.KnownHostsLine)
	if err := os.MkdirAll(s.src.WorkDir, 0o755); err != nil {
		return errors.WithMessage(err, "creating fence work dir")
	}
	if err := os.WriteFile(khPath, []byte(line), 0o644); err != nil {
		return errors.WithMessage(err, "writing known_hosts")
	}
	return nil
}

func (s *Syncer) gitSSHCommand() string {
	idPath := filepath.Join(s.src.WorkDir, "id_rsa")
	khPath := filepath.Join(s.src.WorkDir, "known_hosts")
	if s.src.PrivateKeyPath != "" {
		idPath = s.src.PrivateKeyPath
	}
	return fmt.Sprintf("ssh -i %s -o \"IdentitiesOnly=yes\" -o \"UserKnownHostsFile=%s\"", idPath, khPath)
}

func (s *Syncer) repoDir() string {
	return filepath.Join(s.src.WorkDir, "fence-repo")
}

// Clone clones the fence repository if it has not been cloned yet.
func (s *Syncer) Clone() error {
	if s.cloned {
		return nil
	}
	cmd := exec.Command("git", "clone", s.src.RepoURL, s.repoDir())
	cmd.Env = []string{"GIT_SSH_COMMAND=" + s.gitSSHCommand()}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.WithMessagef(err, "git clone failed: %s", out)
	}
	s.cloned = true
	return nil
}

// Pull rebases the already-cloned fence repository onto its remote.
func (s *Syncer) Pull() error {
	if !s.cloned {
		return s.Clone()
	}
	cmd := exec.Command("git", "pull", "--rebase")
	cmd.Dir = s.repoDir()
	cmd.Env = []string{"GIT_SSH_COMMAND=" + s.gitSSHCommand()}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.WithMessagef(err, "git pull failed: %s", out)
	}
	return nil
}

// LoadFence reads fence.json from the synced repository and converts
// it into a geofence.Fence.
func (s *Syncer) LoadFence() (geofence.Fence, error) {
	path := filepath.Join(s.repoDir(), "fence.json")
	b, err := os.ReadFile(path)
	if err != nil {
		return geofence.Fence{}, errors.WithMessagef(err, "reading %s", path)
	}

	var ff fenceFile
	if err := json.Unmarshal(b, &ff); err != nil {
		return geofence.Fence{}, errors.WithMessage(err, "parsing fence.json")
	}

	var f geofence.Fence
	if len(ff.Polygon) > 0 {
		ring := make(orb.Ring, 0, len(ff.Polygon))
		for _, pt := range ff.Polygon {
			ring = append(ring, orb.Point{pt[0], pt[1]})
		}
		f.Polygon = orb.Polygon{ring}
		f.HasPolygon = true
	}
	if ff.MaxAltitude != nil {
		f.MaxAltitude = *ff.MaxAltitude
		f.HasMaxAlt = true
	}
	if ff.MaxDistance != nil {
		f.MaxDistance = *ff.MaxDistance
		f.HasMaxDist = true
	}

	return f, nil
}
