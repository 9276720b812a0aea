// Package votingdb persists questions, options, votings, keys and
// authorities in postgres.
package votingdb

import (
	"database/sql"
	"encoding/json"
	"math/big"
	"time"

	"github.com/lib/pq"
	"github.com/phayes/errors"

	"github.com/pedroswe/decide/decide"
)

var (
	ErrNotFound  = errors.New("votingdb: voting not found")
	ErrKeyExists = errors.New("votingdb: voting already has a public key")
	ErrBadKey    = errors.New("votingdb: malformed key parameters in database")
)

// uniqueViolation is the postgres error code for breaking a UNIQUE
// constraint.
const uniqueViolation = "23505"

// Store persists votings and their related entities in postgres.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to postgres and verifies the connection. maxIdle of -1
// keeps the driver default pool size.
func Open(connectionString string, maxIdle int) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if maxIdle != -1 {
		db.SetMaxIdleConns(maxIdle)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateQuestion stores a new question.
func (s *Store) CreateQuestion(desc string) (*decide.Question, error) {
	q := &decide.Question{Desc: desc}
	err := s.db.QueryRow(`INSERT INTO question (description) VALUES ($1) RETURNING id`, desc).Scan(&q.ID)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// AddOption stores a new option for a question. A zero number gets the
// default count+2, computed and inserted in one transaction so concurrent
// adds cannot race past the UNIQUE (question_id, number) constraint.
func (s *Store) AddOption(questionID int64, label string, number uint) (*decide.QuestionOption, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if number == 0 {
		var count uint
		err = tx.QueryRow(`SELECT COUNT(*) FROM question_option WHERE question_id = $1`, questionID).Scan(&count)
		if err != nil {
			return nil, err
		}
		number = count + 2
	}

	opt := &decide.QuestionOption{Number: number, Option: label}
	err = tx.QueryRow(`INSERT INTO question_option (question_id, number, label) VALUES ($1, $2, $3) RETURNING id`,
		questionID, number, label).Scan(&opt.ID)
	if err != nil {
		if pqerr, ok := err.(*pq.Error); ok && pqerr.Code == uniqueViolation {
			return nil, errors.Wrap(err, decide.ErrDuplicateNumber)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return opt, nil
}

// CreateVoting stores a new voting in the draft state.
func (s *Store) CreateVoting(name, desc string, questionID int64, start, end *time.Time) (*decide.Voting, error) {
	v := &decide.Voting{Name: name, Desc: desc, StartDate: start, EndDate: end, State: decide.StateDraft}
	err := s.db.QueryRow(`INSERT INTO voting (name, description, question_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		name, desc, questionID, start, end).Scan(&v.ID)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// CreateAuthority stores a new mix/decrypt authority.
func (s *Store) CreateAuthority(name, url string) (*decide.Authority, error) {
	a := &decide.Authority{Name: name, URL: url}
	err := s.db.QueryRow(`INSERT INTO authority (name, url) VALUES ($1, $2) RETURNING id`, name, url).Scan(&a.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// AttachAuthority adds an authority to a voting's ceremony set.
func (s *Store) AttachAuthority(votingID, authorityID int64) error {
	_, err := s.db.Exec(`INSERT INTO voting_authority (voting_id, authority_id) VALUES ($1, $2)`,
		votingID, authorityID)
	return err
}

// GetVoting loads a voting with its question, options, authorities and
// public key.
func (s *Store) GetVoting(id int64) (*decide.Voting, error) {
	v := &decide.Voting{ID: id, Question: &decide.Question{}}
	var (
		desc     sql.NullString
		keyID    sql.NullInt64
		tally    []byte
		postproc []byte
	)
	err := s.db.QueryRow(`SELECT v.name, v.description, v.start_date, v.end_date, v.state,
			v.pub_key_id, v.tally, v.postproc, q.id, q.description
		FROM voting v JOIN question q ON q.id = v.question_id
		WHERE v.id = $1`, id).Scan(
		&v.Name, &desc, &v.StartDate, &v.EndDate, &v.State,
		&keyID, &tally, &postproc, &v.Question.ID, &v.Question.Desc)
	if err == sql.ErrNoRows {
		return nil, errors.Appendf(ErrNotFound, "votingdb: voting %d", id)
	}
	if err != nil {
		return nil, err
	}
	v.Desc = desc.String
	v.Tally = json.RawMessage(tally)
	v.Postproc = json.RawMessage(postproc)

	if keyID.Valid {
		v.PubKey, err = s.getKey(keyID.Int64)
		if err != nil {
			return nil, err
		}
	}

	if err := s.loadOptions(v.Question); err != nil {
		return nil, err
	}
	if err := s.loadAuthorities(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) getKey(id int64) (*decide.Key, error) {
	var p, g, y string
	err := s.db.QueryRow(`SELECT p, g, y FROM key WHERE id = $1`, id).Scan(&p, &g, &y)
	if err != nil {
		return nil, err
	}
	key := &decide.Key{ID: id}
	if key.P, key.G, key.Y = parseParam(p), parseParam(g), parseParam(y); key.P == nil || key.G == nil || key.Y == nil {
		return nil, errors.Appendf(ErrBadKey, "votingdb: key %d", id)
	}
	return key, nil
}

func (s *Store) loadOptions(q *decide.Question) error {
	rows, err := s.db.Query(`SELECT id, number, label FROM question_option
		WHERE question_id = $1 ORDER BY id`, q.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var opt decide.QuestionOption
		if err := rows.Scan(&opt.ID, &opt.Number, &opt.Option); err != nil {
			return err
		}
		q.Options = append(q.Options, opt)
	}
	return rows.Err()
}

func (s *Store) loadAuthorities(v *decide.Voting) error {
	rows, err := s.db.Query(`SELECT a.id, a.name, a.url FROM authority a
		JOIN voting_authority va ON va.authority_id = a.id
		WHERE va.voting_id = $1 ORDER BY a.id`, v.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a decide.Authority
		if err := rows.Scan(&a.ID, &a.Name, &a.URL); err != nil {
			return err
		}
		v.Authorities = append(v.Authorities, a)
	}
	return rows.Err()
}

// SavePubKey stores a freshly generated key and attaches it to the voting,
// moving it to the keyed state. A voting that already has a key is left
// untouched and the write fails with ErrKeyExists: a public key is never
// overwritten.
func (s *Store) SavePubKey(votingID int64, key *decide.Key) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRow(`INSERT INTO key (p, g, y) VALUES ($1, $2, $3) RETURNING id`,
		key.P.String(), key.G.String(), key.Y.String()).Scan(&key.ID)
	if err != nil {
		return err
	}

	res, err := tx.Exec(`UPDATE voting SET pub_key_id = $1, state = $2
		WHERE id = $3 AND pub_key_id IS NULL`, key.ID, decide.StateKeyed, votingID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Appendf(ErrKeyExists, "votingdb: voting %d", votingID)
	}

	return tx.Commit()
}

// SaveTally stores the raw decrypted tally, moving the voting to the
// tallied state. Re-running a tally replaces the prior value.
func (s *Store) SaveTally(votingID int64, tally json.RawMessage) error {
	return s.updateVoting(votingID, `UPDATE voting SET tally = $1, state = $2 WHERE id = $3`,
		[]byte(tally), decide.StateTallied)
}

// SavePostproc stores the post-processed result, moving the voting to the
// processed state. It always overwrites any prior value.
func (s *Store) SavePostproc(votingID int64, postproc json.RawMessage) error {
	return s.updateVoting(votingID, `UPDATE voting SET postproc = $1, state = $2 WHERE id = $3`,
		[]byte(postproc), decide.StateProcessed)
}

func (s *Store) updateVoting(votingID int64, query string, value []byte, state decide.VotingState) error {
	res, err := s.db.Exec(query, value, state, votingID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Appendf(ErrNotFound, "votingdb: voting %d", votingID)
	}
	return nil
}

// parseParam reads a base-10 key parameter stored as text.
func parseParam(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return n
}
