package query

import "workbench/internal/domain"

var fixtureTables = []string{"users", "products", "orders", "categories", "customers"}

type fixture struct {
	columns []string
	rows    []domain.Row
}

var fixtureUsers = fixture{
	columns: []string{"id", "name", "email", "created_at", "status"},
	rows: []domain.Row{
		{"id": 1, "name": "John Doe", "email": "john.doe@example.com", "created_at": "2024-01-15T10:30:00Z", "status": "active"},
		{"id": 2, "name": "Jane Smith", "email": "jane.smith@example.com", "created_at": "2024-01-16T14:22:00Z", "status": "active"},
		{"id": 3, "name": "Bob Johnson", "email": "bob.johnson@example.com", "created_at": "2024-01-17T09:15:00Z", "status": "inactive"},
		{"id": 4, "name": "Alice Brown", "email": "alice.brown@example.com", "created_at": "2024-01-18T16:45:00Z", "status": "active"},
		{"id": 5, "name": "Charlie Wilson", "email": nil, "created_at": "2024-01-19T11:20:00Z", "status": "pending"},
		{"id": 6, "name": "Diana Prince", "email": "diana.prince@example.com", "created_at": "2024-01-20T08:05:00Z", "status": "active"},
		{"id": 7, "name": "Evan Wright", "email": "evan.wright@example.com", "created_at": "2024-01-21T13:50:00Z", "status": "inactive"},
	},
}

var fixtureProducts = fixture{
	columns: []string{"id", "name", "price", "category", "stock"},
	rows: []domain.Row{
		{"id": 1, "name": "Wireless Mouse", "price": 29.99, "category": "Electronics", "stock": 150},
		{"id": 2, "name": "Mechanical Keyboard", "price": 89.99, "category": "Electronics", "stock": 75},
		{"id": 3, "name": "Desk Lamp", "price": 34.5, "category": "Home", "stock": 0},
		{"id": 4, "name": "Notebook", "price": 4.99, "category": "Office", "stock": 500},
		{"id": 5, "name": "Coffee Mug", "price": 12, "category": nil, "stock": 220},
		{"id": 6, "name": "USB-C Hub", "price": 49.95, "category": "Electronics", "stock": 42},
	},
}

var fixtureOrders = fixture{
	columns: []string{"id", "user_id", "total", "status", "order_date"},
	rows: []domain.Row{
		{"id": 1, "user_id": 1, "total": 119.98, "status": "completed", "order_date": "2024-02-01"},
		{"id": 2, "user_id": 2, "total": 29.99, "status": "shipped", "order_date": "2024-02-02"},
		{"id": 3, "user_id": 1, "total": 4.99, "status": "pending", "order_date": "2024-02-03"},
		{"id": 4, "user_id": 4, "total": 84.45, "status": "cancelled", "order_date": "2024-02-05"},
		{"id": 5, "user_id": 6, "total": 62, "status": "completed", "order_date": nil},
	},
}

var fixtureDefault = fixture{
	columns: []string{"id", "name", "value"},
	rows: []domain.Row{
		{"id": 1, "name": "Sample Record 1", "value": "Data 1"},
		{"id": 2, "name": "Sample Record 2", "value": "Data 2"},
		{"id": 3, "name": "Sample Record 3", "value": "Data 3"},
	},
}

// copyRows returns fresh row maps so callers never share fixture state.
func (f fixture) copyRows() ([]string, []domain.Row) {
	cols := append([]string(nil), f.columns...)
	rows := make([]domain.Row, len(f.rows))
	for i, r := range f.rows {
		row := make(domain.Row, len(r))
		for k, v := range r {
			row[k] = v
		}
		rows[i] = row
	}
	return cols, rows
}
