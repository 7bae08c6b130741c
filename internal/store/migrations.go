package store

const schema = `
CREATE TABLE IF NOT EXISTS extensions (
    id           INTEGER PRIMARY KEY,
    name         TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    users        INTEGER NOT NULL DEFAULT 0 CHECK (users >= 0),
    rating       REAL CHECK (rating IS NULL OR (rating >= 0 AND rating <= 5)),
    rating_votes INTEGER NOT NULL DEFAULT 0 CHECK (rating_votes >= 0),
    languages    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_extensions_users ON extensions(users);

CREATE TABLE IF NOT EXISTS categories (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS category_extensions (
    category_id  INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    extension_id INTEGER NOT NULL REFERENCES extensions(id) ON DELETE CASCADE,
    PRIMARY KEY (category_id, extension_id)
);

CREATE INDEX IF NOT EXISTS idx_category_extensions_ext ON category_extensions(extension_id);
`
