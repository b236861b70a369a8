package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"

	"place_recommender/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Open connects with parseTime forced on (DATE columns scan into time.Time).
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	conn, err := gomysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(conn)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Repo stores the place graph in MySQL and implements domain.GraphStore.
type Repo struct{ db *sql.DB }

var _ domain.GraphStore = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// -----------------------------------------------------------------------------
// writes
// -----------------------------------------------------------------------------

func (r *Repo) UpsertCategory(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, insertCategorySQL, name)
	return err
}

func (r *Repo) UpsertFeature(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, insertFeatureSQL, name)
	return err
}

func (r *Repo) UpsertUser(ctx context.Context, u domain.User) error {
	if u.Gender != nil && *u.Gender != "m" && *u.Gender != "f" {
		return domain.InvalidValuef("gender must be m or f, got %q", *u.Gender)
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertUserSQL, u.UserID, valStr(u.Born), valStr(u.Gender)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, unlinkUserFeaturesSQL, u.UserID); err != nil {
			return err
		}
		for _, f := range u.Features {
			if _, err := tx.ExecContext(ctx, insertFeatureSQL, f); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, linkUserFeatureSQL, u.UserID, f); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertPlace writes the place row and replaces its category and feature links.
// Attributes and external ids share the attrs JSON column.
func (r *Repo) UpsertPlace(ctx context.Context, p domain.Place) error {
	attrs := make(map[string]any, len(p.Attributes)+len(p.ExternalIDs))
	for k, v := range p.Attributes {
		attrs[k] = v
	}
	for k, v := range p.ExternalIDs {
		attrs[k] = v
	}
	var raw []byte
	if len(attrs) > 0 {
		var err error
		if raw, err = json.Marshal(attrs); err != nil {
			return err
		}
	}
	var lat, lon any
	if p.Coordinates != nil {
		lat, lon = p.Coordinates.Lat, p.Coordinates.Lon
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertPlaceSQL, p.PlaceID, p.Name, valStr(p.FullAddress), lat, lon, valJSON(raw)); err != nil {
			return err
		}
		for _, q := range []string{unlinkPlaceCategoriesSQL, unlinkPlaceFeaturesSQL} {
			if _, err := tx.ExecContext(ctx, q, p.PlaceID); err != nil {
				return err
			}
		}
		for _, c := range p.Categories {
			if _, err := tx.ExecContext(ctx, insertCategorySQL, c); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, linkCategorySQL, p.PlaceID, c); err != nil {
				return err
			}
		}
		for _, f := range p.Features {
			if _, err := tx.ExecContext(ctx, insertFeatureSQL, f); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, linkPlaceFeatureSQL, p.PlaceID, f); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) Rate(ctx context.Context, userID, placeID string, rating float64) error {
	_, err := r.db.ExecContext(ctx, upsertRatingSQL, userID, placeID, rating)
	var me *gomysql.MySQLError
	if errors.As(err, &me) && me.Number == 1452 { // foreign key: endpoint missing
		return domain.NotFoundf("user %s or place %s was not found", userID, placeID)
	}
	return err
}

func (r *Repo) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// -----------------------------------------------------------------------------
// domain.GraphStore
// -----------------------------------------------------------------------------

func (r *Repo) FindNode(ctx context.Context, label domain.Label, key string) (domain.Node, error) {
	n := domain.Node{Label: label, Key: key}
	var err error
	switch label {
	case domain.LabelUser:
		n.Props, err = r.userProps(ctx, key)
	case domain.LabelPlace:
		n.Props, err = scanPlace(r.db.QueryRowContext(ctx, getPlaceSQL, key), nil)
	case domain.LabelCategory:
		n.Props, err = nameProps(r.db.QueryRowContext(ctx, getCategorySQL, key))
	case domain.LabelFeature:
		n.Props, err = nameProps(r.db.QueryRowContext(ctx, getFeatureSQL, key))
	default:
		return domain.Node{}, domain.InvalidValuef("unknown label %q", label)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Node{}, domain.NotFoundf("%s %s was not found", label, key)
	}
	if err != nil {
		return domain.Node{}, err
	}
	return n, nil
}

func (r *Repo) PointsWithinDistance(ctx context.Context, ref domain.Point, radiusMeters float64, baseCategory string) ([]domain.PlaceAtDistance, error) {
	if !ref.OnEarth() {
		// ST_Distance_Sphere fails on out-of-range arguments
		return []domain.PlaceAtDistance{}, nil
	}
	rows, err := r.db.QueryContext(ctx, pointsWithinDistanceSQL, ref.Lon, ref.Lat, earthRadius, baseCategory, radiusMeters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PlaceAtDistance
	for rows.Next() {
		var d float64
		props, err := scanPlace(rows, &d)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.PlaceAtDistance{
			Node:     domain.Node{Label: domain.LabelPlace, Key: props["placeId"].(string), Props: props},
			Distance: d,
		})
	}
	return out, rows.Err()
}

func (r *Repo) CategoriesOf(ctx context.Context, placeIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(placeIDs))
	if len(placeIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(placeIDs))
	for i, id := range placeIDs {
		args[i] = id
	}
	q := categoriesOfPrefix + "(" + strings.TrimSuffix(strings.Repeat("?,", len(placeIDs)), ",") + ") ORDER BY place_id, category"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, cat string
		if err := rows.Scan(&id, &cat); err != nil {
			return nil, err
		}
		out[id] = append(out[id], cat)
	}
	return out, rows.Err()
}

func (r *Repo) RatedCategoriesWithMeanRating(ctx context.Context, userID string) (map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, ratedCategoriesSQL, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var cat string
		var avg float64
		if err := rows.Scan(&cat, &avg); err != nil {
			return nil, err
		}
		out[cat] = avg
	}
	return out, rows.Err()
}

func (r *Repo) FeaturesOf(ctx context.Context, label domain.Label, key string) ([]string, error) {
	q := placeFeaturesSQL
	if label == domain.LabelUser {
		q = userFeaturesSQL
	}
	rows, err := r.db.QueryContext(ctx, q, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// -----------------------------------------------------------------------------
// scanning
// -----------------------------------------------------------------------------

type scanner interface{ Scan(dest ...any) error }

func (r *Repo) userProps(ctx context.Context, id string) (map[string]any, error) {
	var (
		userID string
		born   sql.NullTime
		gender sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, getUserSQL, id).Scan(&userID, &born, &gender); err != nil {
		return nil, err
	}
	props := map[string]any{"userId": userID}
	if born.Valid {
		props["born"] = born.Time.Format(time.DateOnly)
	}
	if gender.Valid {
		props["gender"] = gender.String
	}
	return props, nil
}

// scanPlace reads placeColumns, plus the distance column when dist is set.
func scanPlace(s scanner, dist *float64) (map[string]any, error) {
	var (
		id, name string
		addr     sql.NullString
		lat, lon sql.NullFloat64
		attrs    []byte
	)
	dest := []any{&id, &name, &addr, &lat, &lon, &attrs}
	if dist != nil {
		dest = append(dest, dist)
	}
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	props := map[string]any{}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &props); err != nil {
			return nil, err
		}
	}
	props["placeId"] = id
	if name != "" {
		props["name"] = name
	}
	if addr.Valid {
		props["fullAddress"] = addr.String
	}
	if lat.Valid && lon.Valid {
		props["coordinates"] = domain.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	return props, nil
}

func nameProps(row *sql.Row) (map[string]any, error) {
	var name string
	if err := row.Scan(&name); err != nil {
		return nil, err
	}
	return map[string]any{"name": name}, nil
}
