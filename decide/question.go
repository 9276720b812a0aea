package decide

import (
	"fmt"

	"github.com/phayes/errors"
)

var (
	ErrDuplicateNumber = errors.New("decide: option number already taken for this question")
)

// Question is a free-text prompt put to the voters. It owns an ordered set
// of options and is immutable for the active life of its voting.
type Question struct {
	ID      int64
	Desc    string
	Options []QuestionOption
}

// QuestionOption is one selectable answer to a question. Number is the
// canonical tally key: decrypted ballots carry option numbers, not labels.
// It is unique within a question.
type QuestionOption struct {
	ID     int64
	Number uint
	Option string
}

// AddOption appends an option to the question. A zero number means
// "assign one for me": the option gets count+2, numbers 0 and 1 being
// reserved by convention for blank and null votes.
func (q *Question) AddOption(label string, number uint) (*QuestionOption, error) {
	if number == 0 {
		number = uint(len(q.Options)) + 2
	}
	for i := range q.Options {
		if q.Options[i].Number == number {
			return nil, errors.Appendf(ErrDuplicateNumber, "decide: number %d", number)
		}
	}
	q.Options = append(q.Options, QuestionOption{Number: number, Option: label})
	return &q.Options[len(q.Options)-1], nil
}

func (q *Question) String() string {
	return q.Desc
}

func (o QuestionOption) String() string {
	return fmt.Sprintf("%s (%d)", o.Option, o.Number)
}
