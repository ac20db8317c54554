package query

import (
	"fmt"
	"strings"
)

type sqlWriter struct {
	b    strings.Builder
	args []interface{}
	next int
}

func (w *sqlWriter) arg(v interface{}) string {
	w.args = append(w.args, v)
	ph := fmt.Sprintf("$%d", w.next)
	w.next++
	return ph
}

// ToSQL renders p as a PostgreSQL boolean expression over the aliases
// c (clients) and a (addresses). Placeholders are numbered from firstArg.
func ToSQL(p Predicate, firstArg int) (string, []interface{}) {
	w := &sqlWriter{next: firstArg}
	p.writeSQL(w)
	return w.b.String(), w.args
}

// likePattern escapes LIKE metacharacters so term is matched literally.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func (p containsPredicate) writeSQL(w *sqlWriter) {
	fmt.Fprintf(&w.b, "%s ILIKE %s", p.field.Column(), w.arg(likePattern(p.term)))
}

func (p equalsPredicate) writeSQL(w *sqlWriter) {
	fmt.Fprintf(&w.b, "%s = %s", p.field.Column(), w.arg(p.value))
}

func (p sexPredicate) writeSQL(w *sqlWriter) {
	fmt.Fprintf(&w.b, "c.sex = %s", w.arg(string(p.sex)))
}

func (p anyAccountPredicate) writeSQL(w *sqlWriter) {
	var cond string
	switch p.test {
	case accountNumberContains:
		cond = "ac.account_number ILIKE " + w.arg(likePattern(p.term))
	case accountTypeContains:
		cond = "ac.account_type ILIKE " + w.arg(likePattern(p.term))
	case balanceAtLeast:
		cond = "ac.balance >= " + w.arg(p.bound)
	case balanceAtMost:
		cond = "ac.balance <= " + w.arg(p.bound)
	}
	fmt.Fprintf(&w.b, "EXISTS (SELECT 1 FROM accounts ac WHERE ac.client_id = c.id AND %s)", cond)
}

func (p andPredicate) writeSQL(w *sqlWriter) {
	writeJoined(w, p, " AND ", "TRUE")
}

func (p orPredicate) writeSQL(w *sqlWriter) {
	writeJoined(w, p, " OR ", "FALSE")
}

func writeJoined(w *sqlWriter, parts []Predicate, sep, empty string) {
	switch len(parts) {
	case 0:
		w.b.WriteString(empty)
		return
	case 1:
		parts[0].writeSQL(w)
		return
	}
	w.b.WriteString("(")
	for i, part := range parts {
		if i > 0 {
			w.b.WriteString(sep)
		}
		part.writeSQL(w)
	}
	w.b.WriteString(")")
}
