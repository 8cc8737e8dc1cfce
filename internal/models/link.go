package models

import (
	"fmt"
	"time"
)

// LinkedType names the kind of entity a document is attached to.
type LinkedType string

const (
	LinkProperty    LinkedType = "property"
	LinkLease       LinkedType = "lease"
	LinkTenant      LinkedType = "tenant"
	LinkTransaction LinkedType = "transaction"
	LinkLoan        LinkedType = "loan"
	LinkGlobal      LinkedType = "global"
)

// LinkedTypes lists every supported link kind.
var LinkedTypes = []LinkedType{LinkProperty, LinkLease, LinkTenant, LinkTransaction, LinkLoan, LinkGlobal}

// Valid reports whether t is a known link kind.
func (t LinkedType) Valid() bool {
	for _, known := range LinkedTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Scoped reports whether links of this kind reference a concrete entity.
func (t LinkedType) Scoped() bool {
	return t.Valid() && t != LinkGlobal
}

// DocumentLink is a polymorphic association between a document and an entity.
// LinkedID is empty only for the global kind.
type DocumentLink struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	LinkedType LinkedType `json:"linkedType"`
	LinkedID   string     `json:"linkedId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Ref returns the link target without identity fields.
func (l DocumentLink) Ref() LinkRef {
	return LinkRef{LinkedType: l.LinkedType, LinkedID: l.LinkedID}
}

// LinkRef names a link target.
type LinkRef struct {
	LinkedType LinkedType `json:"linkedType" yaml:"type"`
	LinkedID   string     `json:"linkedId,omitempty" yaml:"id"`
}

// GlobalLink is the target that makes a document visible in the unscoped listing.
var GlobalLink = LinkRef{LinkedType: LinkGlobal}

// Validate checks that the reference is well formed.
func (r LinkRef) Validate() error {
	switch {
	case !r.LinkedType.Valid():
		return fmt.Errorf("unknown linked type %q", r.LinkedType)
	case r.LinkedType == LinkGlobal && r.LinkedID != "":
		return fmt.Errorf("global link must not carry an id")
	case r.LinkedType != LinkGlobal && r.LinkedID == "":
		return fmt.Errorf("%s link requires an id", r.LinkedType)
	}
	return nil
}
