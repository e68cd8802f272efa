// Package configstore keeps a bounded, bbolt-backed history of compiled
// configuration generations, so an operator can inspect or roll back to a
// previous generation after a hot-reload that compiled cleanly but behaves
// badly in production. It never stores event or extracted-variable state —
// the Matcher itself remains exactly as stateless as the rest of this
// module requires.
package configstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielsvitols/tornado/internal/config"
	bolt "go.etcd.io/bbolt"
)

var generationsBucket = []byte("generations")

// Generation is one archived, successfully compiled configuration.
type Generation struct {
	ID        uint64
	Path      string
	DTO       []byte // JSON produced by config.ToDTO
	CreatedAt time.Time
}

// Store is a bounded ring of the last MaxGenerations configurations.
type Store struct {
	db             *bolt.DB
	maxGenerations int
}

// Open opens (creating if necessary) the bbolt database at dbPath and
// ensures its bucket exists.
func Open(dbPath string, maxGenerations int) (*Store, error) {
	if maxGenerations <= 0 {
		maxGenerations = 50
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("configstore: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(generationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configstore: init bucket: %w", err)
	}

	return &Store{db: db, maxGenerations: maxGenerations}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save archives node (via config.ToDTO) as a new generation, pruning the
// oldest entries beyond maxGenerations.
func (s *Store) Save(path string, node config.Node) (Generation, error) {
	dto, err := config.ToDTO(node)
	if err != nil {
		return Generation{}, fmt.Errorf("configstore: encoding DTO: %w", err)
	}

	gen := Generation{Path: path, DTO: dto, CreatedAt: time.Now()}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(generationsBucket)

		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		gen.ID = id

		raw, err := json.Marshal(storedGeneration{
			Path:      gen.Path,
			DTO:       gen.DTO,
			CreatedAt: gen.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := b.Put(encodeKey(id), raw); err != nil {
			return err
		}

		return prune(b, s.maxGenerations)
	})
	if err != nil {
		return Generation{}, fmt.Errorf("configstore: saving generation: %w", err)
	}

	return gen, nil
}

// Latest returns the most recently saved generation.
func (s *Store) Latest() (Generation, bool, error) {
	var gen Generation
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(generationsBucket).Cursor()
		key, raw := c.Last()
		if key == nil {
			return nil
		}
		found = true
		var err error
		gen, err = decodeGeneration(key, raw)
		return err
	})
	if err != nil {
		return Generation{}, false, fmt.Errorf("configstore: reading latest: %w", err)
	}
	return gen, found, nil
}

// Get returns the generation with the given ID, if it is still retained.
func (s *Store) Get(id uint64) (Generation, bool, error) {
	var gen Generation
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(generationsBucket).Get(encodeKey(id))
		if raw == nil {
			return nil
		}
		found = true
		var err error
		gen, err = decodeGeneration(encodeKey(id), raw)
		return err
	})
	if err != nil {
		return Generation{}, false, fmt.Errorf("configstore: reading generation %d: %w", id, err)
	}
	return gen, found, nil
}

// List returns every retained generation, oldest first.
func (s *Store) List() ([]Generation, error) {
	var gens []Generation

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(generationsBucket).Cursor()
		for key, raw := c.First(); key != nil; key, raw = c.Next() {
			gen, err := decodeGeneration(key, raw)
			if err != nil {
				return err
			}
			gens = append(gens, gen)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("configstore: listing generations: %w", err)
	}
	return gens, nil
}

// storedGeneration is the JSON shape persisted per key; ID is implied by the
// key itself and not duplicated in the value.
type storedGeneration struct {
	Path      string    `json:"path"`
	DTO       []byte    `json:"dto"`
	CreatedAt time.Time `json:"created_at"`
}

func decodeGeneration(key, raw []byte) (Generation, error) {
	var sg storedGeneration
	if err := json.Unmarshal(raw, &sg); err != nil {
		return Generation{}, err
	}
	return Generation{
		ID:        binary.BigEndian.Uint64(key),
		Path:      sg.Path,
		DTO:       sg.DTO,
		CreatedAt: sg.CreatedAt,
	}, nil
}

func encodeKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// prune deletes the oldest entries in b until at most maxGenerations remain.
func prune(b *bolt.Bucket, maxGenerations int) error {
	c := b.Cursor()
	count := 0
	for key, _ := c.First(); key != nil; key, _ = c.Next() {
		count++
	}
	if count <= maxGenerations {
		return nil
	}

	toDelete := count - maxGenerations
	dc := b.Cursor()
	key, _ := dc.First()
	for i := 0; i < toDelete && key != nil; i++ {
		if err := dc.Delete(); err != nil {
			return err
		}
		key, _ = dc.Next()
	}
	return nil
}
