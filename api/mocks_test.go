package api

import (
	"context"
	"sync"

	"github.com/chanderlud/audio-chat/av"
	"github.com/chanderlud/audio-chat/contact"
	"github.com/chanderlud/audio-chat/file"
	"github.com/chanderlud/audio-chat/link"
)

const testSecret = "0123456789abcdef"

// fakeController records calls and returns canned errors.
type fakeController struct {
	mu        sync.Mutex
	status    av.Status
	contacts  map[string]*contact.Contact
	messages  []string
	transfers []*file.Transfer
	callErr   error
}

func newFakeController() *fakeController {
	return &fakeController{
		status:   av.Status{State: "ready"},
		contacts: make(map[string]*contact.Contact),
	}
}

func (f *fakeController) Status() av.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Contacts() []*contact.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*contact.Contact, 0, len(f.contacts))
	for _, c := range f.contacts {
		out = append(out, c)
	}
	return out
}

func (f *fakeController) AddContact(nickname, host string, port uint16, secret string) (*contact.Contact, error) {
	c, err := contact.New(nickname, host, port, secret)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[nickname]; ok {
		return nil, contact.ErrDuplicateNickname
	}
	f.contacts[nickname] = c
	return c, nil
}

func (f *fakeController) RemoveContact(nickname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.contacts[nickname]; !ok {
		return contact.ErrNotFound
	}
	delete(f.contacts, nickname)
	return nil
}

func (f *fakeController) InitiateCall(_ context.Context, nickname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return f.callErr
	}
	if _, ok := f.contacts[nickname]; !ok {
		return contact.ErrNotFound
	}
	f.status = av.Status{State: "connected", Peer: nickname}
	return nil
}

func (f *fakeController) EndCall() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State != "connected" {
		return av.ErrNoActiveCall
	}
	f.status = av.Status{State: "ready"}
	return nil
}

func (f *fakeController) AudioTest() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.State = "testing"
	return nil
}

func (f *fakeController) SendMessage(text []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State != "connected" {
		return av.ErrNoActiveCall
	}
	f.messages = append(f.messages, string(text))
	return nil
}

func (f *fakeController) SendFile(_ context.Context, path string) (*file.Transfer, error) {
	desc, err := file.FromFile(path, 1024)
	if err != nil {
		return nil, err
	}
	t := file.NewTransfer("bob", desc, file.DirectionOutgoing)
	f.mu.Lock()
	f.transfers = append(f.transfers, t)
	f.mu.Unlock()
	return t, nil
}

func (f *fakeController) Transfers() []*file.Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*file.Transfer(nil), f.transfers...)
}

func (f *fakeController) StartScreenshare(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State != "connected" {
		return link.ErrPeerUnreachable
	}
	f.status.Screenshare = true
	return nil
}

func (f *fakeController) EndScreenshare() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.Screenshare = false
	return nil
}

func (f *fakeController) SetMuted(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.Muted = muted
}

func (f *fakeController) SetDeafened(deafened bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.Deafened = deafened
}
