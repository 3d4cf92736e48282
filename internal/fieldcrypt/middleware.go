package fieldcrypt

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/finvault/internal/common"
	"github.com/dmitrijs2005/finvault/internal/cryptox"
	"github.com/dmitrijs2005/finvault/internal/logging"
	"github.com/dmitrijs2005/finvault/internal/models"
)

// DEKResolver yields the raw DEK of an entity for a reader. The middleware
// only ever sees DEKs, never a UEK or private key.
type DEKResolver interface {
	ResolveDEKForReader(ctx context.Context, entityType models.EntityType, entityID, ownerID, readerID string) ([]byte, error)
}

// Entity is one row handed to DecryptEntityList.
type Entity struct {
	ID          string
	OwnerID     string
	IsEncrypted bool
	Fields      Record
}

type Middleware struct {
	resolver DEKResolver
	policy   Policy
	log      logging.Logger
}

type Option func(*Middleware)

func WithPolicy(p Policy) Option {
	return func(m *Middleware) { m.policy = p }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Middleware) { m.log = l }
}

func New(resolver DEKResolver, opts ...Option) *Middleware {
	m := &Middleware{resolver: resolver, policy: PolicyDefault, log: logging.Nop()}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Middleware) Policy() Policy { return m.policy }

// EncryptFields returns a copy of rec with every non-empty sensitive field
// replaced by an envelope. Other fields are copied unchanged.
func (m *Middleware) EncryptFields(entityType models.EntityType, rec Record, dek []byte) (Record, error) {
	fields, ok := fieldsFor(entityType)
	if !ok {
		return nil, common.ErrUnknownEntityType
	}

	out := rec.Clone()
	for _, name := range fields.Text {
		v, ok := out[name]
		if !ok || isEmpty(v) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q: text value of type %T", name, v)
		}
		enc, err := sealString(s, dek)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = enc
	}
	for _, name := range fields.Numeric {
		v, ok := out[name]
		if !ok || isEmpty(v) {
			continue
		}
		s, err := formatNumber(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		enc, err := sealString(s, dek)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = enc
	}
	return out, nil
}

func sealString(s string, dek []byte) (string, error) {
	sealed, err := cryptox.Seal([]byte(s), dek)
	if err != nil {
		return "", err
	}
	return encodeEnvelope(sealed)
}

// DecryptFields returns a copy of rec with its sensitive fields decrypted.
// A field that cannot be decrypted is handled by the middleware's Policy;
// under PolicyDefault this never returns an error for a known type.
func (m *Middleware) DecryptFields(ctx context.Context, entityType models.EntityType, rec Record, dek []byte) (Record, error) {
	fields, ok := fieldsFor(entityType)
	if !ok {
		return nil, common.ErrUnknownEntityType
	}

	out := rec.Clone()
	for _, name := range fields.Text {
		if err := m.decryptField(ctx, entityType, out, name, dek, false); err != nil {
			return nil, err
		}
	}
	for _, name := range fields.Numeric {
		if err := m.decryptField(ctx, entityType, out, name, dek, true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *Middleware) decryptField(ctx context.Context, entityType models.EntityType, rec Record, name string, dek []byte, numeric bool) error {
	v, ok := rec[name]
	if !ok {
		return nil
	}

	val, err := openValue(v, dek, numeric)
	if err == nil {
		rec[name] = val
		return nil
	}

	if m.policy != PolicyDefault {
		return fmt.Errorf("%w: %s.%s: %v", common.ErrFieldUndecryptable, entityType, name, err)
	}

	m.log.Warn(ctx, "field could not be decrypted, using default",
		"entity_type", entityType, "field", name, "error", err.Error())
	if numeric {
		rec[name] = int64(0)
	} else {
		rec[name] = ""
	}
	return nil
}

// openValue decrypts a stored value. Empty values pass through.
func openValue(v any, dek []byte, numeric bool) (any, error) {
	f := ParseField(v)
	switch f.Kind {
	case KindInvalid:
		return nil, f.Err
	case KindPlain:
		if f.Empty() {
			return f.Value, nil
		}
		return nil, errNotEnvelope
	}

	plain, err := cryptox.Open(f.Sealed, dek)
	if err != nil {
		return nil, err
	}
	if numeric {
		return parseNumber(string(plain))
	}
	return string(plain), nil
}

// DecryptEntityList decrypts every encrypted item readable by readerID.
// Unencrypted items pass through. Encrypted items are left out when there
// is no reader or no DEK can be resolved for them; the list shrinks instead
// of failing. Field failures follow the middleware's Policy, and only
// PolicyPropagate makes this return an error.
func (m *Middleware) DecryptEntityList(ctx context.Context, entityType models.EntityType, items []Entity, readerID string) ([]Entity, error) {
	if _, ok := fieldsFor(entityType); !ok {
		return nil, common.ErrUnknownEntityType
	}

	out := make([]Entity, 0, len(items))
	for _, item := range items {
		if !item.IsEncrypted {
			out = append(out, item)
			continue
		}
		if readerID == "" {
			m.log.Warn(ctx, "encrypted entity excluded, no reader",
				"entity_type", entityType, "entity_id", item.ID)
			continue
		}

		dek, err := m.resolver.ResolveDEKForReader(ctx, entityType, item.ID, item.OwnerID, readerID)
		if err != nil {
			m.log.Warn(ctx, "encrypted entity excluded, no data key",
				"entity_type", entityType, "entity_id", item.ID, "reader_id", readerID, "error", err.Error())
			continue
		}

		fields, err := m.DecryptFields(ctx, entityType, item.Fields, dek)
		common.WipeByteArray(dek)
		if err != nil {
			if m.policy == PolicyPropagate {
				return nil, fmt.Errorf("entity %s: %w", item.ID, err)
			}
			m.log.Warn(ctx, "encrypted entity excluded, undecryptable field",
				"entity_type", entityType, "entity_id", item.ID, "reader_id", readerID, "error", err.Error())
			continue
		}

		item.Fields = fields
		out = append(out, item)
	}
	return out, nil
}
