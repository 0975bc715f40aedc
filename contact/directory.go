package contact

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Directory is the in-memory set of contacts keyed by nickname. Contacts added
// to a started directory are probed for liveness until removed.
type Directory struct {
	mu       sync.RWMutex
	contacts map[string]*Contact
	probers  map[string]*Prober
	store    Store

	ctx      context.Context
	opts     []ProberOption
	onChange StatusFunc
}

// NewDirectory creates an empty directory persisted through store. A nil store
// keeps contacts in memory only.
func NewDirectory(store Store) *Directory {
	return &Directory{
		contacts: make(map[string]*Contact),
		probers:  make(map[string]*Prober),
		store:    store,
	}
}

// Load reads every record from the store. Invalid records are skipped.
func (d *Directory) Load() error {
	if d.store == nil {
		return nil
	}

	records, err := d.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, rec := range records {
		c, err := rec.Contact()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Directory.Load",
				"nickname": rec.Nickname,
				"error":    err.Error(),
			}).Warn("Skipping invalid contact record")
			continue
		}
		d.contacts[c.Nickname] = c
	}

	logrus.WithFields(logrus.Fields{
		"function": "Directory.Load",
		"count":    len(d.contacts),
	}).Info("Contacts loaded")

	return nil
}

// SetStatusFunc registers a callback for contact online/offline changes. It
// applies to probes started afterwards.
func (d *Directory) SetStatusFunc(fn StatusFunc) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// StartProbing launches liveness probes for every contact, now and as they are
// added, until ctx is cancelled.
func (d *Directory) StartProbing(ctx context.Context, opts ...ProberOption) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ctx = ctx
	d.opts = opts
	for nickname, c := range d.contacts {
		if _, running := d.probers[nickname]; !running {
			d.probers[nickname] = d.startProberLocked(c)
		}
	}
}

func (d *Directory) startProberLocked(c *Contact) *Prober {
	opts := append([]ProberOption(nil), d.opts...)
	if d.onChange != nil {
		opts = append(opts, WithStatusFunc(d.onChange))
	}
	return StartProber(d.ctx, c, opts...)
}

// Add registers and persists a new contact.
func (d *Directory) Add(c *Contact) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.contacts[c.Nickname]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNickname, c.Nickname)
	}
	if d.store != nil {
		if err := d.store.Save(c.Record()); err != nil {
			return fmt.Errorf("failed to save contact %s: %w", c.Nickname, err)
		}
	}

	d.contacts[c.Nickname] = c
	if d.ctx != nil {
		d.probers[c.Nickname] = d.startProberLocked(c)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Directory.Add",
		"nickname": c.Nickname,
		"addr":     c.Addr(),
	}).Info("Contact added")

	return nil
}

// Remove deletes a contact, stopping its probe.
func (d *Directory) Remove(nickname string) error {
	d.mu.Lock()
	c, exists := d.contacts[nickname]
	if !exists {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, nickname)
	}
	delete(d.contacts, nickname)
	prober := d.probers[nickname]
	delete(d.probers, nickname)
	d.mu.Unlock()

	if prober != nil {
		prober.Stop()
	}
	if d.store != nil {
		if err := d.store.Delete(nickname); err != nil {
			return fmt.Errorf("failed to delete contact %s: %w", nickname, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Directory.Remove",
		"nickname": c.Nickname,
	}).Info("Contact removed")

	return nil
}

// Get returns the contact with the given nickname.
func (d *Directory) Get(nickname string) (*Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.contacts[nickname]
	return c, ok
}

// ByHost returns the contact whose address has the given host. When several
// contacts share the host, the first by nickname is returned.
func (d *Directory) ByHost(host string) (*Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var found *Contact
	for _, c := range d.contacts {
		if c.Host == host && (found == nil || c.Nickname < found.Nickname) {
			found = c
		}
	}
	return found, found != nil
}

// List returns all contacts sorted by nickname.
func (d *Directory) List() []*Contact {
	d.mu.RLock()
	list := make([]*Contact, 0, len(d.contacts))
	for _, c := range d.contacts {
		list = append(list, c)
	}
	d.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Nickname < list[j].Nickname })
	return list
}

// Len returns the number of contacts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.contacts)
}

// Close stops every probe and closes the store.
func (d *Directory) Close() error {
	d.mu.Lock()
	probers := d.probers
	d.probers = make(map[string]*Prober)
	d.mu.Unlock()

	for _, p := range probers {
		p.Stop()
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
