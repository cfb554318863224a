package mysql

// LAST_INSERT_ID(id) makes LastInsertId report the existing row on a duplicate.
const upsertSiteSQL = `
INSERT INTO sites (domain)
VALUES (?)
ON DUPLICATE KEY UPDATE
  id         = LAST_INSERT_ID(id),
  updated_at = CURRENT_TIMESTAMP
`

const selectSiteIDSQL = `SELECT id FROM sites WHERE domain = ?`

const updateRiskSQL = `
UPDATE sites
SET risk_score = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

// complaint_date rather than `date`, which is a keyword.
const insertComplaintSQL = `
INSERT INTO complaints
  (site_id, source, title, content, author, complaint_date, rating, sentiment, url, is_resolved)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertHistorySQL = `
INSERT INTO scraping_history
  (site_id, source, status, records_found, duration_ms, error_message)
VALUES
  (?, ?, ?, ?, ?, ?)
`
