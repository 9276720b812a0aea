package votingdb

const schemaQuery = `CREATE TABLE question (
					  id BIGSERIAL PRIMARY KEY,
					  description TEXT NOT NULL
					);

					CREATE TABLE question_option (
					  id BIGSERIAL PRIMARY KEY,
					  question_id BIGINT NOT NULL REFERENCES question (id) ON DELETE CASCADE,
					  number INTEGER NOT NULL,
					  label TEXT NOT NULL,
					  UNIQUE (question_id, number)
					);

					CREATE TABLE key (
					  id BIGSERIAL PRIMARY KEY,
					  p TEXT NOT NULL,
					  g TEXT NOT NULL,
					  y TEXT NOT NULL
					);

					CREATE TABLE authority (
					  id BIGSERIAL PRIMARY KEY,
					  name TEXT NOT NULL,
					  url TEXT NOT NULL
					);

					CREATE TABLE voting (
					  id BIGSERIAL PRIMARY KEY,
					  name VARCHAR(200) NOT NULL,
					  description TEXT,
					  question_id BIGINT NOT NULL REFERENCES question (id),
					  start_date TIMESTAMPTZ,
					  end_date TIMESTAMPTZ,
					  state TEXT NOT NULL DEFAULT 'draft'
					    CHECK (state IN ('draft', 'keyed', 'tallied', 'processed')),
					  pub_key_id BIGINT UNIQUE REFERENCES key (id),
					  tally JSONB,
					  postproc JSONB
					);

					CREATE TABLE voting_authority (
					  voting_id BIGINT NOT NULL REFERENCES voting (id) ON DELETE CASCADE,
					  authority_id BIGINT NOT NULL REFERENCES authority (id),
					  PRIMARY KEY (voting_id, authority_id)
					);

					CREATE INDEX question_option_question_idx ON question_option (question_id);
					CREATE INDEX voting_state_idx ON voting (state);`

// Setup creates the database tables and indexes. It should be run once
// before normal operations can occur.
func (s *Store) Setup() error {
	_, err := s.db.Exec(schemaQuery)
	return err
}
