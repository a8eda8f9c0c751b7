package game

import (
	"sync"

	"github.com/corentings/chess/v2/opening"
)

var (
	bookOnce sync.Once
	book     opening.Book
)

func ecoBook() opening.Book {
	bookOnce.Do(func() {
		book = opening.NewBookECO()
	})
	return book
}

// lookupOpening names the deepest ECO opening matching the moves played.
func lookupOpening(b *Board) (code, title string) {
	g := b.game()
	if len(g.Moves()) == 0 {
		return "", ""
	}
	bk := ecoBook()
	if bk == nil {
		return "", ""
	}
	if o := bk.Find(g.Moves()); o != nil {
		return o.Code(), o.Title()
	}
	return "", ""
}
