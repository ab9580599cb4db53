package sql

import "testing"

func TestParseCreateTableWithPrimaryKeyAndForeignKey(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE orders (
		id INT NOT NULL,
		user_id INT,
		PRIMARY KEY(id),
		FOREIGN KEY(user_id) REFERENCES users(id)
	);`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ct, ok := stmt.(*CreateTableStmt)
	if !ok {
		t.Fatalf("expected *CreateTableStmt, got %T", stmt)
	}
	if ct.TableName != "orders" || len(ct.Columns) != 2 {
		t.Fatalf("unexpected statement: %+v", ct)
	}
	if len(ct.PrimaryKey) != 1 || ct.PrimaryKey[0] != "id" {
		t.Fatalf("expected primary key [id], got %v", ct.PrimaryKey)
	}
	if len(ct.ForeignKeys) != 1 || ct.ForeignKeys[0].RefTable != "users" {
		t.Fatalf("expected foreign key to users, got %+v", ct.ForeignKeys)
	}
}

func TestParseInsertMultiRow(t *testing.T) {
	stmt, err := Parse(`INSERT INTO t (a, b) VALUES (1, 'x'), (2, 'y');`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ins, ok := stmt.(*InsertStmt)
	if !ok {
		t.Fatalf("expected *InsertStmt, got %T", stmt)
	}
	if len(ins.Rows) != 2 || len(ins.Rows[0]) != 2 {
		t.Fatalf("unexpected rows: %+v", ins.Rows)
	}
}

func TestParseSelectWhereAndOrderBy(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM t WHERE a >= 10 AND b != 'x' ORDER BY a;`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sel, ok := stmt.(*SelectStmt)
	if !ok {
		t.Fatalf("expected *SelectStmt, got %T", stmt)
	}
	if sel.TableName != "t" || sel.OrderBy != "a" {
		t.Fatalf("unexpected statement: %+v", sel)
	}
	if len(sel.Where) != 2 {
		t.Fatalf("expected 2 predicates, got %d", len(sel.Where))
	}
}

func TestParseUpdateAndDelete(t *testing.T) {
	stmt, err := Parse(`UPDATE t SET a = 1, b = 'y' WHERE id = 5;`)
	if err != nil {
		t.Fatalf("parse update: %v", err)
	}
	upd := stmt.(*UpdateStmt)
	if len(upd.Set) != 2 || len(upd.Where) != 1 {
		t.Fatalf("unexpected update: %+v", upd)
	}

	stmt, err = Parse(`DELETE FROM t WHERE id = 5;`)
	if err != nil {
		t.Fatalf("parse delete: %v", err)
	}
	del := stmt.(*DeleteStmt)
	if del.TableName != "t" || len(del.Where) != 1 {
		t.Fatalf("unexpected delete: %+v", del)
	}
}

func TestParseAlterTableForms(t *testing.T) {
	if _, err := Parse(`ALTER TABLE t ADD PRIMARY KEY(id);`); err != nil {
		t.Fatalf("add primary key: %v", err)
	}
	if _, err := Parse(`ALTER TABLE t DROP PRIMARY KEY;`); err != nil {
		t.Fatalf("drop primary key: %v", err)
	}
	if _, err := Parse(`ALTER TABLE t ADD FOREIGN KEY(uid) REFERENCES users(id);`); err != nil {
		t.Fatalf("add foreign key: %v", err)
	}
	if _, err := Parse(`ALTER TABLE t DROP FOREIGN KEY users;`); err != nil {
		t.Fatalf("drop foreign key: %v", err)
	}
	if _, err := Parse(`ALTER TABLE t ADD UNIQUE(email);`); err != nil {
		t.Fatalf("add unique: %v", err)
	}
}
