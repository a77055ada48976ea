package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbQueries maps a query name to SQL over the world index. Every query takes a single
// LIMIT argument; filters are appended by dbCmd.
var dbQueries = map[string]string{
	"snapshots":  `SELECT tick,path,world_id,objects,players,switches,belts,packages,explosives FROM snapshots`,
	"switches":   `SELECT switch_id,tick,state,prev_move,speed,belts FROM switch_state`,
	"explosives": `SELECT explosive_id,tick,armed,attached_to,emitter,detonate_at FROM explosive_state`,
	"audits":     `SELECT tick,seq,actor,action,object_id,x,y,from_state,to_state,reason FROM audits`,
	"ticks":      `SELECT tick,digest,joins,leaves,actions FROM ticks`,
	"actions":    `SELECT tick,seq,player_id,controls,interactions,act_json FROM actions`,
}

var dbOrder = map[string]string{
	"snapshots":  "tick DESC",
	"switches":   "switch_id",
	"explosives": "explosive_id",
	"audits":     "tick DESC, seq DESC",
	"ticks":      "tick DESC",
	"actions":    "tick DESC, seq DESC",
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	object := fs.String("object", "", "object_id filter (audits)")
	player := fs.String("player", "", "player_id filter (actions, audits actor)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}

	query, where, qargs, err := buildQuery(q, *object, *player)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *limit <= 0 {
		*limit = 20
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	rows, err := queryRows(db, query+where+" ORDER BY "+dbOrder[q]+" LIMIT ?", append(qargs, *limit)...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func buildQuery(name, object, player string) (query, where string, args []any, err error) {
	query, ok := dbQueries[name]
	if !ok {
		return "", "", nil, fmt.Errorf("unknown query %q (snapshots|switches|explosives|audits|ticks|actions)", name)
	}
	var conds []string
	if object != "" && name == "audits" {
		conds = append(conds, "object_id = ?")
		args = append(args, object)
	}
	if player != "" {
		switch name {
		case "audits":
			conds = append(conds, "actor = ?")
			args = append(args, player)
		case "actions":
			conds = append(conds, "player_id = ?")
			args = append(args, player)
		}
	}
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return query, where, args, nil
}

// queryRows scans every row into a column-name keyed map.
func queryRows(db *sql.DB, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = vals[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
