package access

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var ErrNotAuthorized = errors.New("not authorized")

// Capability names a privilege that can be bound to principals.
type Capability string

const (
	// Manager may grant and revoke Executor.
	Manager Capability = "MANAGER_ROLE"
	// Executor may trigger swap execution.
	Executor Capability = "EXECUTOR_ROLE"
)

// Authorizer is the read side of a role store
type Authorizer interface {
	HasCapability(principal common.Address, c Capability) bool
	Owner() common.Address
}

// RequireOwner fails unless caller owns the store.
func RequireOwner(a Authorizer, caller common.Address) error {
	if caller == (common.Address{}) || caller != a.Owner() {
		return fmt.Errorf("%w: %s is not the owner", ErrNotAuthorized, caller.Hex())
	}
	return nil
}

// RequireCapability fails unless caller holds c.
func RequireCapability(a Authorizer, caller common.Address, c Capability) error {
	if !a.HasCapability(caller, c) {
		return fmt.Errorf("%w: %s lacks %s", ErrNotAuthorized, caller.Hex(), c)
	}
	return nil
}

// Roles is an owner plus a capability table. The owner implicitly holds every capability.
type Roles struct {
	mu       sync.RWMutex
	owner    common.Address
	bindings map[Capability]map[common.Address]struct{}
}

func NewRoles(owner common.Address) *Roles {
	return &Roles{
		owner:    owner,
		bindings: make(map[Capability]map[common.Address]struct{}),
	}
}

func (r *Roles) Owner() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

func (r *Roles) HasCapability(principal common.Address, c Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if principal == (common.Address{}) {
		return false
	}
	if principal == r.owner {
		return true
	}
	_, ok := r.bindings[c][principal]
	return ok
}

// admin reports whether caller may change bindings of c
func (r *Roles) admin(caller common.Address, c Capability) bool {
	if caller == r.owner {
		return true
	}
	if c == Executor {
		_, ok := r.bindings[Manager][caller]
		return ok
	}
	return false
}

// Grant binds c to principal.
func (r *Roles) Grant(caller common.Address, c Capability, principal common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.admin(caller, c) {
		return fmt.Errorf("%w: %s cannot grant %s", ErrNotAuthorized, caller.Hex(), c)
	}
	if principal == (common.Address{}) {
		return fmt.Errorf("grant %s: zero principal", c)
	}
	if r.bindings[c] == nil {
		r.bindings[c] = make(map[common.Address]struct{})
	}
	r.bindings[c][principal] = struct{}{}
	return nil
}

// Revoke unbinds c from principal. Revoking an absent binding is a no-op.
func (r *Roles) Revoke(caller common.Address, c Capability, principal common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.admin(caller, c) {
		return fmt.Errorf("%w: %s cannot revoke %s", ErrNotAuthorized, caller.Hex(), c)
	}
	delete(r.bindings[c], principal)
	return nil
}

// TransferOwnership hands the store to newOwner.
func (r *Roles) TransferOwnership(caller, newOwner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrNotAuthorized, caller.Hex())
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("transfer ownership: zero owner")
	}
	r.owner = newOwner
	return nil
}
