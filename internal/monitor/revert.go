package monitor

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bassamsdata/fsmonitor/internal/logging"
)

var revertLog = logging.ForComponent(logging.CompRevert)

// RevertToCheckpoint reconstructs the filesystem state captured at
// checkpoints[index] and truncates the log and checkpoint list to match
// (spec §4.8). Returns nil when index names the final checkpoint (a no-op)
// or the checkpoints slice doesn't have anything after it to revert.
func (m *Monitor) RevertToCheckpoint(index int) *RevertResult {
	checkpoints := m.log.Checkpoints()
	if index < 1 || index >= len(checkpoints) {
		return nil
	}
	target := checkpoints[index-1].Timestamp
	result := m.revert(target, false)
	if result == nil {
		return nil
	}
	result.NewCheckpoints = checkpoints[:index]
	m.log.replaceAll(result.NewChanges, result.NewCheckpoints)
	return result
}

// RevertToOriginal reconstructs the pre-session filesystem state: every
// file ever touched is restored or removed, and the log and checkpoint list
// end up empty.
func (m *Monitor) RevertToOriginal() *RevertResult {
	result := m.revert(-1, true)
	if result == nil {
		return nil
	}
	result.NewCheckpoints = nil
	m.log.replaceAll(result.NewChanges, result.NewCheckpoints)
	return result
}

// revert implements the shared algorithm of spec §4.8 steps 1-7. target is
// the checkpoint timestamp boundary; fullRevert selects the "original"
// variant (target = -infinity, i.e. every change reverts).
func (m *Monitor) revert(target int64, fullRevert bool) *RevertResult {
	all := m.log.AllChanges()

	var keep, toRevert []Change
	for _, c := range all {
		if !fullRevert && c.Timestamp <= target {
			keep = append(keep, c)
		} else {
			toRevert = append(toRevert, c)
		}
	}

	if len(toRevert) == 0 {
		return nil
	}

	// Earliest change per path, since later changes after target are
	// implied (spec §4.8 step 3).
	firstByPath := make(map[string]Change)
	changesByPath := make(map[string]int)
	order := make([]string, 0)
	for _, c := range toRevert {
		changesByPath[c.Path]++
		if _, ok := firstByPath[c.Path]; !ok {
			firstByPath[c.Path] = c
			order = append(order, c.Path)
		}
	}

	result := &RevertResult{IsFullRevert: fullRevert}
	touchedDirs := make(map[string]struct{})

	for _, path := range order {
		first := firstByPath[path]
		if err := m.applyRevertAction(first, touchedDirs); err != nil {
			result.ErrorCount++
			revertLog.Warn("revert_action_failed", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		// RevertedCount counts the undone change records, not the paths.
		result.RevertedCount += changesByPath[path]
	}

	m.cleanupEmptyDirs(touchedDirs)

	keptPaths := make(map[string]struct{}, len(keep))
	for _, c := range keep {
		keptPaths[c.Path] = struct{}{}
	}
	m.cache.RetainOnly(keptPaths)

	result.NewChanges = keep
	return result
}

// applyRevertAction performs the single-file restore action described by
// spec §4.8 step 4.
func (m *Monitor) applyRevertAction(first Change, touchedDirs map[string]struct{}) error {
	switch first.Kind {
	case Created:
		abs := m.AbsPath(first.Path)
		touchedDirs[filepath.Dir(abs)] = struct{}{}
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil

	case Modified, Deleted:
		return m.writeFile(first.Path, first.OldContent, touchedDirs)

	case Renamed:
		oldPath := first.Metadata.OldPath
		newAbs := m.AbsPath(first.Path)
		touchedDirs[filepath.Dir(newAbs)] = struct{}{}
		if err := os.Remove(newAbs); err != nil && !os.IsNotExist(err) {
			return err
		}
		return m.writeFile(oldPath, first.OldContent, touchedDirs)

	default:
		return nil
	}
}

func (m *Monitor) writeFile(relPath string, content []byte, touchedDirs map[string]struct{}) error {
	abs := m.AbsPath(relPath)
	dir := filepath.Dir(abs)
	touchedDirs[dir] = struct{}{}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, content, 0o644)
}

// cleanupEmptyDirs attempts rmdir on each touched directory and its
// ancestors up to the session root, ignoring DirNotEmpty failures (spec
// §4.8, "Directory cleanup").
func (m *Monitor) cleanupEmptyDirs(dirs map[string]struct{}) {
	for dir := range dirs {
		for {
			if dir == m.root || len(dir) <= len(m.root) {
				break
			}
			err := os.Remove(dir)
			if err != nil {
				break // not empty, or already gone, or permission error — stop walking up
			}
			dir = filepath.Dir(dir)
		}
	}
}
