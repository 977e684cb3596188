// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import "context"

// RowCounts returns the number of rows in the entry table and in the vector
// table, for checking the two stay in step.
func (k *KnowledgeStore) RowCounts(ctx context.Context) (entries, vectors int, err error) {
	if err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_base`).Scan(&entries); err != nil {
		return 0, 0, err
	}
	if err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vec_knowledge_base`).Scan(&vectors); err != nil {
		return 0, 0, err
	}
	return entries, vectors, nil
}
