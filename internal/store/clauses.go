package store

import "gorm.io/gorm/clause"

// onConflictDoNothing implements the "ON CONFLICT (tx_hash) DO NOTHING"
// dedup insert spec §4.10 requires for on-chain trade ingestion.
func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}
