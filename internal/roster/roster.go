/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package roster holds the fixed set of people allowed to sign up, and checks
// their personal codes.
package roster

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrDuplicateName      = errors.New("duplicate participant name")
	ErrBlankName          = errors.New("participant name is blank")
	ErrNoCredential       = errors.New("participant has no code")
	ErrEmptyRoster        = errors.New("roster is empty")
)

// Participant is one roster member. Exactly one of Code (plain text) or Hash
// (bcrypt) is set.
type Participant struct {
	Name string `yaml:"name"`
	Code string `yaml:"code,omitempty"`
	Hash string `yaml:"hash,omitempty"`
}

type file struct {
	Players []Participant `yaml:"players"`
}

// Roster is safe for concurrent use. It is read-mostly; only SetCredential
// writes.
type Roster struct {
	mu      sync.RWMutex
	players []Participant
	index   map[string]int
}

// New validates participants and keeps them in declaration order.
func New(players []Participant) (*Roster, error) {
	if len(players) == 0 {
		return nil, ErrEmptyRoster
	}

	r := &Roster{
		players: make([]Participant, 0, len(players)),
		index:   make(map[string]int, len(players)),
	}

	for _, p := range players {
		p.Name = strings.TrimSpace(p.Name)

		switch {
		case p.Name == "":
			return nil, ErrBlankName
		case p.Code == "" && p.Hash == "":
			return nil, fmt.Errorf("%w: %q", ErrNoCredential, p.Name)
		}

		if _, exists := r.index[p.Name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
		}

		r.index[p.Name] = len(r.players)
		r.players = append(r.players, p)
	}

	return r, nil
}

// Parse reads a YAML roster of the form:
//
//	players:
//	  - name: Dana
//	    code: abc123
//	  - name: Eli
//	    hash: $2a$10$...
func Parse(data []byte) (*Roster, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	return New(f.Players)
}

func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	return Parse(data)
}

// Save writes the roster to path, replacing it atomically.
func (r *Roster) Save(path string) error {
	r.mu.RLock()
	data, err := yaml.Marshal(file{Players: r.players})
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func (r *Roster) Lookup(name string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Participant{}, false
	}

	return r.players[i], true
}

// Verify reports whether name is on the roster and credential matches its code.
func (r *Roster) Verify(name, credential string) bool {
	p, ok := r.Lookup(name)
	if !ok {
		return false
	}

	return p.matches(credential)
}

func (p Participant) matches(credential string) bool {
	if p.Hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(p.Hash), []byte(credential)) == nil
	}

	return subtle.ConstantTimeCompare([]byte(p.Code), []byte(credential)) == 1
}

// Names returns participant names in declaration order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.players))
	for i, p := range r.players {
		names[i] = p.Name
	}

	return names
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.players)
}

// SetCredential replaces a participant's code with a bcrypt hash of credential.
func (r *Roster) SetCredential(name, credential string) error {
	if credential == "" {
		return ErrNoCredential
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParticipant, name)
	}

	r.players[i].Code = ""
	r.players[i].Hash = string(hash)

	return nil
}
