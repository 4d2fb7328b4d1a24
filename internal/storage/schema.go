package storage

// Layout is the on-disk arrangement of deck and model information.
type Layout int

const (
	// LayoutLegacy keeps models and decks as JSON in the single "col" row.
	LayoutLegacy Layout = iota
	// LayoutSplit keeps them in the "decks", "notetypes" and "fields" tables.
	LayoutSplit
)

func (l Layout) String() string {
	if l == LayoutSplit {
		return "split"
	}
	return "legacy"
}

const recordSchema = `
-- 'col' holds one row with collection-wide settings.
CREATE TABLE IF NOT EXISTS col (
    id integer primary key,
    crt integer not null,
    mod integer not null,
    scm integer not null,
    ver integer not null,
    dty integer not null,
    usn integer not null,
    ls integer not null,
    conf text not null,
    models text not null,
    decks text not null,
    dconf text not null,
    tags text not null
);

CREATE TABLE IF NOT EXISTS notes (
    id integer primary key,
    guid text not null,
    mid integer not null,
    mod integer not null,
    usn integer not null,
    tags text not null,
    flds text not null,
    -- sort field, text stored under integer affinity
    sfld integer not null,
    csum integer not null,
    flags integer not null,
    data text not null
);

CREATE TABLE IF NOT EXISTS cards (
    id integer primary key,
    nid integer not null,
    did integer not null,
    ord integer not null,
    mod integer not null,
    usn integer not null,
    type integer not null,
    queue integer not null,
    due integer not null,
    ivl integer not null,
    factor integer not null,
    reps integer not null,
    lapses integer not null,
    left integer not null,
    odue integer not null,
    odid integer not null,
    flags integer not null,
    data text not null
);

CREATE TABLE IF NOT EXISTS revlog (
    id integer primary key,
    cid integer not null,
    usn integer not null,
    ease integer not null,
    ivl integer not null,
    lastIvl integer not null,
    factor integer not null,
    time integer not null,
    type integer not null
);

CREATE TABLE IF NOT EXISTS graves (
    usn integer not null,
    oid integer not null,
    type integer not null
);
`

const splitSchema = `
CREATE TABLE IF NOT EXISTS decks (
    id integer primary key not null,
    name text not null,
    mtime_secs integer not null,
    usn integer not null,
    common blob not null,
    kind blob not null
);

CREATE TABLE IF NOT EXISTS notetypes (
    id integer primary key not null,
    name text not null,
    mtime_secs integer not null,
    usn integer not null,
    config blob not null
);

CREATE TABLE IF NOT EXISTS fields (
    ntid integer not null,
    ord integer not null,
    name text not null,
    config blob not null,
    PRIMARY KEY (ntid, ord)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS templates (
    ntid integer not null,
    ord integer not null,
    name text not null,
    mtime_secs integer not null,
    usn integer not null,
    config blob not null,
    PRIMARY KEY (ntid, ord)
) WITHOUT ROWID;
`

// indexes lists the search indexes the desktop application expects after
// notes or cards were rewritten.
var indexes = map[string][]string{
	"notes": {
		`CREATE INDEX IF NOT EXISTS idx_notes_mid ON notes (mid)`,
		`CREATE INDEX IF NOT EXISTS ix_notes_csum ON notes (csum)`,
		`CREATE INDEX IF NOT EXISTS ix_notes_usn ON notes (usn)`,
	},
	"cards": {
		`CREATE INDEX IF NOT EXISTS idx_cards_odid ON cards (odid) WHERE odid != 0`,
		`CREATE INDEX IF NOT EXISTS ix_cards_nid ON cards (nid)`,
		`CREATE INDEX IF NOT EXISTS ix_cards_sched ON cards (did, queue, due)`,
		`CREATE INDEX IF NOT EXISTS ix_cards_usn ON cards (usn)`,
	},
}
