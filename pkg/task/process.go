package task

import (
	"fmt"
	"path"

	"github.com/mklimuk/vault-recur/pkg/notify"
	"github.com/mklimuk/vault-recur/pkg/recurrence"
	"github.com/mklimuk/vault-recur/pkg/schedule"
	"github.com/mklimuk/vault-recur/pkg/vault"
)

// Process creates the next instance of the task at path (when shouldRecur is
// set and the rule resolves) and archives the note. A busy path yields a
// StatusBusy result and no error.
//
// A due date that cannot be computed aborts before anything is written.
// Storage failures abort at the failing step; a next instance that was
// already created stays in place and the note remains eligible for a retry.
func (e *Engine) Process(p string, shouldRecur, copySubtasks bool) (*Result, error) {
	res := e.newResult(p, ActionProcess)
	if !e.locks.TryAcquire(p) {
		return e.busy(res), nil
	}
	defer e.locks.Release(p)

	snap := e.snapshot()
	note, err := vault.ReadNote(e.store, p)
	if err != nil {
		return e.fail(res, err)
	}

	if shouldRecur {
		if err := e.createNext(snap, note, copySubtasks, res); err != nil {
			return e.fail(res, err)
		}
	}

	if err := e.archive(snap, note, res); err != nil {
		return e.fail(res, err)
	}

	res.Status = StatusProcessed
	e.logger.Info("task: processed", "path", p, "rule", res.RuleKey, "next", res.NewPath, "archive", res.ArchivePath)
	e.notifier.Notify(notify.Infof("Task processed"))
	e.finish(res)
	e.publish(res)
	return res, nil
}

// Archive marks the note at p archived and moves it to the archive folder
// without creating a next instance.
func (e *Engine) Archive(p string) (*Result, error) {
	res := e.newResult(p, ActionArchive)
	if !e.locks.TryAcquire(p) {
		return e.busy(res), nil
	}
	defer e.locks.Release(p)

	snap := e.snapshot()
	note, err := vault.ReadNote(e.store, p)
	if err != nil {
		return e.fail(res, err)
	}
	if err := e.archive(snap, note, res); err != nil {
		return e.fail(res, err)
	}

	res.Status = StatusArchived
	e.logger.Info("task: archived", "path", p, "archive", res.ArchivePath)
	e.notifier.Notify(notify.Infof("Task archived"))
	e.finish(res)
	e.publish(res)
	return res, nil
}

func (e *Engine) busy(res *Result) *Result {
	res.Status = StatusBusy
	e.logger.Debug("task: path is busy", "path", res.Path)
	e.notifier.Notify(notify.Infof("File %s is being processed, please wait", res.Path))
	e.finish(res)
	return res
}

// createNext writes the next instance of note. It returns nil without writing
// anything when the rule is unresolved or "none".
func (e *Engine) createNext(snap snapshot, note *vault.Note, copySubtasks bool, res *Result) error {
	f := snap.settings.Fields
	raw := note.Frontmatter[f.Recurrence]

	rule, ok := e.resolveRule(snap.matcher, raw, res)
	if !ok {
		return nil
	}
	if rule.IsNone() {
		e.logger.Debug("task: rule is none, no next instance", "path", note.Path)
		return nil
	}

	calc := e.calculator()
	newDue, err := calc.NextDueDate(dueString(note.Frontmatter, f.DueDate), rule, snap.settings.DateFormat)
	if err != nil {
		return fmt.Errorf("failed to calculate next due date: %w", err)
	}
	res.NewDue = newDue

	fm := note.Frontmatter.Clone()
	fm[f.Completed] = false
	fm[f.Archived] = false
	fm[f.DueDate] = newDue
	fm[f.Created] = schedule.Format(e.now().In(e.location), snap.settings.DateFormat)

	body := note.Body
	if copySubtasks {
		body = ResetChecklist(body)
	}

	candidate := NextPath(note.Path, newDue)
	target, err := UniquePath(e.store, candidate)
	if err != nil {
		return err
	}

	text, err := vault.Encode(note.Derive(target, fm, body))
	if err != nil {
		return err
	}
	if target != candidate {
		e.notifier.Notify(notify.Infof("Created with unique name: %s", target))
	}

	if err := e.store.Create(target, text); err != nil {
		return fmt.Errorf("failed to create next instance: %w", err)
	}
	res.NewPath = target
	e.notifier.Notify(notify.Infof("Next instance created: %s", path.Base(target)))
	return nil
}

// resolveRule looks up the recurrence value. Non-string values never match.
func (e *Engine) resolveRule(m *recurrence.Matcher, raw interface{}, res *Result) (recurrence.Rule, bool) {
	value, isString := raw.(string)
	if isString {
		if match, ok := m.Resolve(value); ok {
			res.RuleKey = match.Rule.Key
			res.Fuzzy = !match.Exact
			if !match.Exact {
				e.logger.Debug("task: fuzzy rule match", "value", value, "rule", match.Rule.Key, "score", match.Score)
				label := match.Rule.LabelEn
				if label == "" {
					label = match.Rule.Key
				}
				e.notifier.Notify(notify.Infof("Recurrence %q interpreted as %q", value, label))
			}
			return match.Rule, true
		}
	}

	e.logger.Warn("task: invalid recurrence rule", "path", res.Path, "value", raw)
	e.notifier.Notify(notify.Warnf("Invalid recurrence rule: %q", fmt.Sprint(raw)))
	return recurrence.Rule{}, false
}

// dueString returns the due value the calculator parses. Falsy values such
// as false or 0 count as no due date.
func dueString(fm vault.Frontmatter, key string) string {
	if !fm.Truthy(key) {
		return ""
	}
	if s, ok := fm.String(key); ok {
		return s
	}
	return fmt.Sprint(fm[key])
}

// archive sets the archived flag on note, writes it in place and moves it into
// the (dated) archive folder.
func (e *Engine) archive(snap snapshot, note *vault.Note, res *Result) error {
	s := snap.settings
	note.Frontmatter[s.Fields.Archived] = true
	if err := vault.WriteNote(e.store, note); err != nil {
		return err
	}

	folder := s.ArchiveFolder
	if s.UseDatedArchiveFolders && s.DatedArchiveFormat != "" {
		folder = path.Join(folder, schedule.Format(e.now().In(e.location), s.DatedArchiveFormat))
	}
	if err := e.store.EnsureFolder(folder); err != nil {
		return fmt.Errorf("failed to create archive folder: %w", err)
	}

	dest, err := UniquePath(e.store, path.Join(folder, path.Base(note.Path)))
	if err != nil {
		return err
	}
	if err := e.store.Move(note.Path, dest); err != nil {
		return fmt.Errorf("failed to move to archive: %w", err)
	}
	res.ArchivePath = dest
	return nil
}
