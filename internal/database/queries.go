package database

// Order document queries
const (
	SelectOrderDocumentsSQL = `
		SELECT document
		FROM order_documents
		WHERE branch_id = $1 AND collection = $2
		ORDER BY position ASC`

	DeleteOrderDocumentsSQL = `
		DELETE FROM order_documents
		WHERE branch_id = $1 AND collection = $2`

	InsertOrderDocumentSQL = `
		INSERT INTO order_documents (branch_id, collection, position, order_id, created_at, document)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)`
)
