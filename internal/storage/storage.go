package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Storage хранит состояние paper терминала: счет, открытые позиции и
// историю сделок
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// PositionRow открытая paper позиция
type PositionRow struct {
	Ticket    uint64
	Symbol    string
	Side      string
	Volume    decimal.Decimal
	PriceOpen decimal.Decimal
	SL        decimal.Decimal
	TP        decimal.Decimal
	Magic     int64
	Comment   string
	OpenedAt  time.Time
}

// DealRow исполненная paper сделка
type DealRow struct {
	Deal      uint64
	Order     uint64
	Position  uint64
	Symbol    string
	Side      string
	Volume    decimal.Decimal
	Price     decimal.Decimal
	Profit    decimal.Decimal
	Comment   string
	CreatedAt time.Time
}

// AccountRow paper счет
type AccountRow struct {
	Login    int64
	Balance  decimal.Decimal
	Leverage int64
}

// New открывает БД по пути dbPath и создает таблицы
func New(dbPath string, logger *slog.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// sqlite допускает одного писателя, одно соединение сохраняет
	// in-memory БД общей между вызовами
	db.SetMaxOpenConns(1)

	s := &Storage{
		db:     db,
		logger: logger,
	}

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS paper_account (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			login INTEGER NOT NULL,
			balance TEXT NOT NULL,
			leverage INTEGER NOT NULL DEFAULT 100
		);

		CREATE TABLE IF NOT EXISTS paper_positions (
			ticket INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			volume TEXT NOT NULL,
			price_open TEXT NOT NULL,
			sl TEXT NOT NULL DEFAULT '0',
			tp TEXT NOT NULL DEFAULT '0',
			magic INTEGER NOT NULL DEFAULT 0,
			comment TEXT NOT NULL DEFAULT '',
			opened_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_paper_positions_symbol ON paper_positions(symbol);

		CREATE TABLE IF NOT EXISTS paper_deals (
			deal INTEGER PRIMARY KEY AUTOINCREMENT,
			order_ticket INTEGER NOT NULL,
			position INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			volume TEXT NOT NULL,
			price TEXT NOT NULL,
			profit TEXT NOT NULL DEFAULT '0',
			comment TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	s.logger.Info("✅ Database initialized")

	return nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// EnsureAccount создает paper счет, если его еще нет. У существующего
// счета баланс не меняется
func (s *Storage) EnsureAccount(ctx context.Context, login int64, balance decimal.Decimal, leverage int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_account (id, login, balance, leverage)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, login, balance.String(), leverage)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

func (s *Storage) Account(ctx context.Context) (AccountRow, error) {
	var (
		acc     AccountRow
		balance string
	)

	err := s.db.QueryRowContext(ctx, `SELECT login, balance, leverage FROM paper_account WHERE id = 1`).
		Scan(&acc.Login, &balance, &acc.Leverage)
	if errors.Is(err, sql.ErrNoRows) {
		return AccountRow{}, ErrNotFound
	}
	if err != nil {
		return AccountRow{}, fmt.Errorf("failed to get account: %w", err)
	}

	acc.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return AccountRow{}, fmt.Errorf("corrupt balance %q: %w", balance, err)
	}

	return acc, nil
}

// OpenPosition атомарно добавляет позицию и открывающую сделку. Тикет
// позиции совпадает с тикетом ордера
func (s *Storage) OpenPosition(ctx context.Context, p PositionRow) (PositionRow, DealRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PositionRow{}, DealRow{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO paper_positions (symbol, side, volume, price_open, sl, tp, magic, comment, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Symbol, p.Side, p.Volume.String(), p.PriceOpen.String(), p.SL.String(), p.TP.String(), p.Magic, p.Comment, time.Now().Unix())
	if err != nil {
		return PositionRow{}, DealRow{}, fmt.Errorf("failed to insert position: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return PositionRow{}, DealRow{}, err
	}
	p.Ticket = uint64(id)

	deal, err := insertDeal(ctx, tx, DealRow{
		Order:    p.Ticket,
		Position: p.Ticket,
		Symbol:   p.Symbol,
		Side:     p.Side,
		Volume:   p.Volume,
		Price:    p.PriceOpen,
		Comment:  p.Comment,
	})
	if err != nil {
		return PositionRow{}, DealRow{}, err
	}

	if err := tx.Commit(); err != nil {
		return PositionRow{}, DealRow{}, err
	}

	s.logger.Debug("Paper position opened", slog.Uint64("ticket", p.Ticket), slog.String("symbol", p.Symbol))

	return p, deal, nil
}

// ClosePosition уменьшает позицию ticket на volume по цене price, зачисляет
// прибыль на баланс и записывает закрывающую сделку. Полное закрытие
// удаляет позицию
func (s *Storage) ClosePosition(ctx context.Context, ticket uint64, side string, volume, price, profit decimal.Decimal, comment string) (DealRow, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DealRow{}, err
	}
	defer tx.Rollback()

	pos, err := scanPosition(tx.QueryRowContext(ctx, positionSelect+` WHERE ticket = ?`, ticket))
	if err != nil {
		return DealRow{}, err
	}

	if volume.GreaterThan(pos.Volume) {
		return DealRow{}, fmt.Errorf("close volume %s exceeds position volume %s", volume, pos.Volume)
	}

	remaining := pos.Volume.Sub(volume)
	if remaining.IsZero() {
		_, err = tx.ExecContext(ctx, `DELETE FROM paper_positions WHERE ticket = ?`, ticket)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE paper_positions SET volume = ? WHERE ticket = ?`, remaining.String(), ticket)
	}
	if err != nil {
		return DealRow{}, fmt.Errorf("failed to update position: %w", err)
	}

	var balance string
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM paper_account WHERE id = 1`).Scan(&balance); err != nil {
		return DealRow{}, fmt.Errorf("failed to read balance: %w", err)
	}
	current, err := decimal.NewFromString(balance)
	if err != nil {
		return DealRow{}, fmt.Errorf("corrupt balance %q: %w", balance, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE paper_account SET balance = ? WHERE id = 1`, current.Add(profit).String()); err != nil {
		return DealRow{}, fmt.Errorf("failed to update balance: %w", err)
	}

	deal, err := insertDeal(ctx, tx, DealRow{
		Order:    0,
		Position: ticket,
		Symbol:   pos.Symbol,
		Side:     side,
		Volume:   volume,
		Price:    price,
		Profit:   profit,
		Comment:  comment,
	})
	if err != nil {
		return DealRow{}, err
	}

	if err := tx.Commit(); err != nil {
		return DealRow{}, err
	}

	return deal, nil
}

const positionSelect = `
	SELECT ticket, symbol, side, volume, price_open, sl, tp, magic, comment, opened_at
	FROM paper_positions`

// Positions возвращает открытые позиции по возрастанию тикета, по всем
// символам если symbol пустой
func (s *Storage) Positions(ctx context.Context, symbol string) ([]PositionRow, error) {
	query := positionSelect
	var args []any
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY ticket`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionRow
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

func (s *Storage) Position(ctx context.Context, ticket uint64) (PositionRow, error) {
	return scanPosition(s.db.QueryRowContext(ctx, positionSelect+` WHERE ticket = ?`, ticket))
}

// Deals возвращает историю сделок, старые первыми
func (s *Storage) Deals(ctx context.Context) ([]DealRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT deal, order_ticket, position, symbol, side, volume, price, profit, comment, created_at
		FROM paper_deals
		ORDER BY deal
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []DealRow
	for rows.Next() {
		var (
			d                     DealRow
			volume, price, profit string
			createdAt             int64
		)
		if err := rows.Scan(&d.Deal, &d.Order, &d.Position, &d.Symbol, &d.Side, &volume, &price, &profit, &d.Comment, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(createdAt, 0)
		d.Volume = decimal.RequireFromString(volume)
		d.Price = decimal.RequireFromString(price)
		d.Profit = decimal.RequireFromString(profit)
		deals = append(deals, d)
	}

	return deals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (PositionRow, error) {
	var (
		p                         PositionRow
		volume, priceOpen, sl, tp string
		openedAt                  int64
	)

	err := row.Scan(&p.Ticket, &p.Symbol, &p.Side, &volume, &priceOpen, &sl, &tp, &p.Magic, &p.Comment, &openedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PositionRow{}, ErrNotFound
	}
	if err != nil {
		return PositionRow{}, err
	}
	p.OpenedAt = time.Unix(openedAt, 0)

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&p.Volume, volume},
		{&p.PriceOpen, priceOpen},
		{&p.SL, sl},
		{&p.TP, tp},
	} {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return PositionRow{}, fmt.Errorf("position %d: corrupt decimal %q: %w", p.Ticket, f.src, err)
		}
		*f.dst = v
	}

	return p, nil
}

func insertDeal(ctx context.Context, tx *sql.Tx, d DealRow) (DealRow, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO paper_deals (order_ticket, position, symbol, side, volume, price, profit, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.Order, d.Position, d.Symbol, d.Side, d.Volume.String(), d.Price.String(), d.Profit.String(), d.Comment, time.Now().Unix())
	if err != nil {
		return DealRow{}, fmt.Errorf("failed to insert deal: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return DealRow{}, err
	}
	d.Deal = uint64(id)

	// У закрывающей сделки свой тикет ордера
	if d.Order == 0 {
		d.Order = d.Deal
		if _, err := tx.ExecContext(ctx, `UPDATE paper_deals SET order_ticket = ? WHERE deal = ?`, d.Order, d.Deal); err != nil {
			return DealRow{}, err
		}
	}

	return d, nil
}
