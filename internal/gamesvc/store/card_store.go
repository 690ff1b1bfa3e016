package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/avvvet/uno-services/internal/gamesvc/models"
	"github.com/jmoiron/sqlx"
)

const cardColumns = `c.id, c.game_id, c.deck_card_id, c.owner_id, c.location, c.discard_seq, d.color, d.value`

// Shuffler permutes n elements in place. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type CardStore struct {
	db sqlx.ExtContext
}

func NewCardStore(db sqlx.ExtContext) *CardStore {
	return &CardStore{db: db}
}

// CreateDeck materializes one card per deck-card definition for the game.
// Locations are a shuffled permutation of 1..N; the lowest location is the
// top of the draw pile.
func (s *CardStore) CreateDeck(ctx context.Context, gameID int64, rng Shuffler) (int, error) {
	ids := []int64{}
	if err := sqlx.SelectContext(ctx, s.db, &ids, `SELECT id FROM deck_cards ORDER BY id`); err != nil {
		return 0, fmt.Errorf("failed to load deck cards: %w", err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("deck card catalog is empty")
	}

	locations := make([]int, len(ids))
	for i := range locations {
		locations[i] = i + 1
	}
	rng.Shuffle(len(locations), func(i, j int) {
		locations[i], locations[j] = locations[j], locations[i]
	})

	values := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids)*4)
	for i, id := range ids {
		values = append(values, "(?, ?, ?, ?)")
		args = append(args, gameID, id, models.OwnerNeutral, locations[i])
	}

	query := s.db.Rebind(`INSERT INTO cards (game_id, deck_card_id, owner_id, location) VALUES ` + strings.Join(values, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to create deck for game %d: %w", gameID, err)
	}
	return len(ids), nil
}

// drawQuery selects the top of a game's draw pile, locking only the game's
// own card rows.
func drawQuery(q sqlx.ExtContext) string {
	return q.Rebind(`
		SELECT ` + cardColumns + `
		FROM cards c
		JOIN deck_cards d ON d.id = c.deck_card_id
		WHERE c.game_id = ? AND c.owner_id = ? AND c.location > 0
		ORDER BY c.location
		LIMIT ?` + forUpdate(q, "c"))
}

// Draw hands the n top cards of the draw pile to playerID. When fewer than n
// cards are left nothing is moved and ErrDeckExhausted is returned.
func (s *CardStore) Draw(ctx context.Context, gameID, playerID int64, n int) ([]models.Card, error) {
	if n <= 0 {
		return []models.Card{}, nil
	}
	if playerID <= 0 {
		return nil, fmt.Errorf("invalid player ID: %d", playerID)
	}

	cards := []models.Card{}
	if err := sqlx.SelectContext(ctx, s.db, &cards, drawQuery(s.db), gameID, models.OwnerNeutral, n); err != nil {
		return nil, fmt.Errorf("failed to select cards to draw: %w", err)
	}
	if len(cards) < n {
		return nil, fmt.Errorf("game %d has %d cards left, %d requested: %w", gameID, len(cards), n, ErrDeckExhausted)
	}

	ids := make([]int64, len(cards))
	for i := range cards {
		ids[i] = cards[i].ID
		cards[i].OwnerID = playerID
		cards[i].Location = 0
	}

	update, args, err := sqlx.In(`UPDATE cards SET owner_id = ?, location = 0 WHERE game_id = ? AND owner_id = ? AND id IN (?)`,
		playerID, gameID, models.OwnerNeutral, ids)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(update), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to draw cards: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if int(affected) != len(ids) {
		return nil, fmt.Errorf("drew %d of %d cards: %w", affected, len(ids), ErrDeckExhausted)
	}
	return cards, nil
}

// PlayCard moves a card from the player's hand onto the discard pile. The
// returned bool is false when the card was not in that hand; nothing changes
// in that case.
func (s *CardStore) PlayCard(ctx context.Context, cardID, gameID, playerID int64) (bool, error) {
	if playerID <= 0 {
		return false, nil
	}
	query := s.db.Rebind(`
		UPDATE cards
		SET owner_id = ?, location = ?,
			discard_seq = (SELECT COALESCE(MAX(discard_seq), 0) + 1 FROM cards WHERE game_id = ?)
		WHERE id = ? AND game_id = ? AND owner_id = ?
	`)
	return s.exec(ctx, query, models.OwnerNeutral, models.LocationDiscard, gameID, cardID, gameID, playerID)
}

// Discard flips a draw-pile card onto the discard pile. Used for the
// starter card.
func (s *CardStore) Discard(ctx context.Context, cardID, gameID int64) (bool, error) {
	query := s.db.Rebind(`
		UPDATE cards
		SET location = ?,
			discard_seq = (SELECT COALESCE(MAX(discard_seq), 0) + 1 FROM cards WHERE game_id = ?)
		WHERE id = ? AND game_id = ? AND owner_id = ? AND location > 0
	`)
	return s.exec(ctx, query, models.LocationDiscard, gameID, cardID, gameID, models.OwnerNeutral)
}

// Bury moves a draw-pile card to the bottom of the pile.
func (s *CardStore) Bury(ctx context.Context, cardID, gameID int64) (bool, error) {
	query := s.db.Rebind(`
		UPDATE cards
		SET location = (SELECT MAX(location) + 1 FROM cards WHERE game_id = ?)
		WHERE id = ? AND game_id = ? AND owner_id = ? AND location > 0
	`)
	return s.exec(ctx, query, gameID, cardID, gameID, models.OwnerNeutral)
}

// NextInDeck returns the top of the draw pile without drawing it.
func (s *CardStore) NextInDeck(ctx context.Context, gameID int64) (*models.Card, error) {
	query := s.db.Rebind(`
		SELECT ` + cardColumns + `
		FROM cards c
		JOIN deck_cards d ON d.id = c.deck_card_id
		WHERE c.game_id = ? AND c.owner_id = ? AND c.location > 0
		ORDER BY c.location
		LIMIT 1
	`)

	card := &models.Card{}
	if err := sqlx.GetContext(ctx, s.db, card, query, gameID, models.OwnerNeutral); err != nil {
		if notFound(err) == ErrNotFound {
			return nil, ErrDeckExhausted
		}
		return nil, fmt.Errorf("failed to peek deck: %w", err)
	}
	return card, nil
}

// TopOfDiscard returns the most recently discarded card, or nil when the
// discard pile is empty.
func (s *CardStore) TopOfDiscard(ctx context.Context, gameID int64) (*models.Card, error) {
	query := s.db.Rebind(`
		SELECT ` + cardColumns + `
		FROM cards c
		JOIN deck_cards d ON d.id = c.deck_card_id
		WHERE c.game_id = ? AND c.location = ?
		ORDER BY c.discard_seq DESC, c.id DESC
		LIMIT 1
	`)

	card := &models.Card{}
	if err := sqlx.GetContext(ctx, s.db, card, query, gameID, models.LocationDiscard); err != nil {
		if notFound(err) == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get top of discard: %w", err)
	}
	return card, nil
}

func (s *CardStore) Get(ctx context.Context, gameID, cardID int64) (*models.Card, error) {
	query := s.db.Rebind(`
		SELECT ` + cardColumns + `
		FROM cards c
		JOIN deck_cards d ON d.id = c.deck_card_id
		WHERE c.game_id = ? AND c.id = ?
	`)

	card := &models.Card{}
	if err := sqlx.GetContext(ctx, s.db, card, query, gameID, cardID); err != nil {
		return nil, notFound(err)
	}
	return card, nil
}

func (s *CardStore) Hand(ctx context.Context, gameID, playerID int64) ([]models.Card, error) {
	query := s.db.Rebind(`
		SELECT ` + cardColumns + `
		FROM cards c
		JOIN deck_cards d ON d.id = c.deck_card_id
		WHERE c.game_id = ? AND c.owner_id = ?
		ORDER BY c.id
	`)

	cards := []models.Card{}
	if playerID <= 0 {
		return cards, nil
	}
	if err := sqlx.SelectContext(ctx, s.db, &cards, query, gameID, playerID); err != nil {
		return nil, fmt.Errorf("failed to get hand: %w", err)
	}
	return cards, nil
}

func (s *CardStore) HandCount(ctx context.Context, gameID, playerID int64) (int, error) {
	if playerID <= 0 {
		return 0, nil
	}
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM cards WHERE game_id = ? AND owner_id = ?`)
	if err := sqlx.GetContext(ctx, s.db, &n, query, gameID, playerID); err != nil {
		return 0, fmt.Errorf("failed to count hand: %w", err)
	}
	return n, nil
}

// HandCounts returns the number of cards held by every player that holds any.
func (s *CardStore) HandCounts(ctx context.Context, gameID int64) ([]models.HandCount, error) {
	query := s.db.Rebind(`
		SELECT owner_id, COUNT(*) AS hand_count
		FROM cards
		WHERE game_id = ? AND owner_id <> ?
		GROUP BY owner_id
		ORDER BY owner_id
	`)

	counts := []models.HandCount{}
	if err := sqlx.SelectContext(ctx, s.db, &counts, query, gameID, models.OwnerNeutral); err != nil {
		return nil, fmt.Errorf("failed to count hands: %w", err)
	}
	return counts, nil
}

// DeckCount is the number of cards left in the draw pile.
func (s *CardStore) DeckCount(ctx context.Context, gameID int64) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM cards WHERE game_id = ? AND owner_id = ? AND location > 0`)
	if err := sqlx.GetContext(ctx, s.db, &n, query, gameID, models.OwnerNeutral); err != nil {
		return 0, fmt.Errorf("failed to count deck: %w", err)
	}
	return n, nil
}

// Locations returns the draw-pile locations of the game, lowest first.
func (s *CardStore) Locations(ctx context.Context, gameID int64) ([]int, error) {
	query := s.db.Rebind(`SELECT location FROM cards WHERE game_id = ? AND owner_id = ? AND location > 0 ORDER BY location`)

	locations := []int{}
	if err := sqlx.SelectContext(ctx, s.db, &locations, query, gameID, models.OwnerNeutral); err != nil {
		return nil, fmt.Errorf("failed to list deck locations: %w", err)
	}
	return locations, nil
}

func (s *CardStore) exec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
