package mysql

// earthRadius matches the radius the other backends use, so distances agree
// to the millimetre across stores.
const earthRadius = 6378140

// -----------------------------------------------------------------------------
// WRITE QUERIES
// -----------------------------------------------------------------------------

const upsertUserSQL = `
INSERT INTO users (user_id, born, gender)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  born       = VALUES(born),
  gender     = VALUES(gender),
  updated_at = CURRENT_TIMESTAMP
`

const upsertPlaceSQL = `
INSERT INTO places (place_id, name, full_address, lat, lon, attrs)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name         = VALUES(name),
  full_address = VALUES(full_address),
  lat          = VALUES(lat),
  lon          = VALUES(lon),
  attrs        = VALUES(attrs),
  updated_at   = CURRENT_TIMESTAMP
`

const insertCategorySQL = `INSERT IGNORE INTO categories (name) VALUES (?)`

const insertFeatureSQL = `INSERT IGNORE INTO features (name) VALUES (?)`

const linkCategorySQL = `INSERT IGNORE INTO place_categories (place_id, category) VALUES (?, ?)`

const linkPlaceFeatureSQL = `INSERT IGNORE INTO place_features (place_id, feature) VALUES (?, ?)`

const unlinkPlaceCategoriesSQL = `DELETE FROM place_categories WHERE place_id = ?`

const unlinkPlaceFeaturesSQL = `DELETE FROM place_features WHERE place_id = ?`

const unlinkUserFeaturesSQL = `DELETE FROM user_features WHERE user_id = ?`

const linkUserFeatureSQL = `INSERT IGNORE INTO user_features (user_id, feature) VALUES (?, ?)`

// A user rates a place at most once; a new rating replaces the old one.
const upsertRatingSQL = `
INSERT INTO ratings (user_id, place_id, rating)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE
  rating   = VALUES(rating),
  rated_at = CURRENT_TIMESTAMP
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getUserSQL = `SELECT user_id, born, gender FROM users WHERE user_id = ?`

const placeColumns = `p.place_id, p.name, p.full_address, p.lat, p.lon, p.attrs`

const getPlaceSQL = `SELECT ` + placeColumns + ` FROM places p WHERE p.place_id = ?`

const getCategorySQL = `SELECT name FROM categories WHERE name = ?`

const getFeatureSQL = `SELECT name FROM features WHERE name = ?`

// Places without coordinates never match. HAVING keeps the bound strict.
const pointsWithinDistanceSQL = `
SELECT ` + placeColumns + `,
       ST_Distance_Sphere(POINT(p.lon, p.lat), POINT(?, ?), ?) AS distance
FROM places p
JOIN place_categories pc
  ON pc.place_id = p.place_id AND pc.category = ?
WHERE p.lat IS NOT NULL AND p.lon IS NOT NULL
HAVING distance < ?
ORDER BY p.place_id
`

// categoriesOfPrefix is completed with an IN list by the repo.
const categoriesOfPrefix = `SELECT place_id, category FROM place_categories WHERE place_id IN `

const ratedCategoriesSQL = `
SELECT pc.category, AVG(r.rating)
FROM ratings r
JOIN place_categories pc ON pc.place_id = r.place_id
WHERE r.user_id = ?
GROUP BY pc.category
`

const placeFeaturesSQL = `SELECT feature FROM place_features WHERE place_id = ? ORDER BY feature`

const userFeaturesSQL = `SELECT feature FROM user_features WHERE user_id = ? ORDER BY feature`
