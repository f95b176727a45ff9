/*
Package pgkit provides pooled, transactional PostgreSQL sessions and a
record serialization layer for Go applications.

pgkit wraps Bun ORM with:
  - Connection pooling with overflow, lease timeouts, and recycling
  - Sessions: leased connections with explicit transaction control
  - A process-wide pool registry for singleton-style access
  - Record to mapping conversion driven by struct tags
  - Rich error handling with PostgreSQL error parsing
  - Configurable observability (logging, metrics, tracing, pool stats)
  - Health check utilities

# Basic Usage

	cfg := pgkit.DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb")
	cfg.Logger = slog.Default()

	pool := pgkit.NewPool(cfg)
	if err := pool.Init(); err != nil {
	    log.Fatal(err)
	}
	defer pool.Close()

Init never touches the network; connections are opened on first use. Use
WaitForHealthy when startup must block on a reachable database:

	if err := pool.WaitForHealthy(ctx, time.Second); err != nil {
	    log.Fatal(err)
	}

# Sessions

A session is a leased connection with an open transaction. Nothing is
persisted until Commit; closing the session discards uncommitted work and
returns the connection to the pool.

Scoped (rollback on error, discard on missing commit):

	err := pool.WithSession(ctx, func(s *pgkit.Session) error {
	    if _, err := s.NewInsert().Model(&user).Exec(ctx); err != nil {
	        return err // rolls back
	    }
	    return s.Commit()
	})

Manual control:

	s, err := pool.GetSession(ctx)
	if err != nil {
	    return err
	}
	defer s.Close()

	// ... operations ...

	return s.Commit()

Savepoints guard a risky step without ending the transaction:

	err := pool.WithSession(ctx, func(s *pgkit.Session) error {
	    s.NewInsert().Model(&order).Exec(ctx)

	    _ = s.WithSavepoint(ctx, func(s *pgkit.Session) error {
	        return tryOptionalStep(ctx, s) // failure only rewinds this step
	    })

	    return s.Commit()
	})

# Registry

Register the application pool once, reach it anywhere:

	pgkit.Register(pool)

	err := pgkit.WithSession(ctx, func(s *pgkit.Session) error {
	    ...
	})

# Records

Populate and ToMapping convert between structs and loosely-typed
mappings, resolving keys from bun tags, snake_case names, and the
optional RecordMapper and RecordExcluder interfaces:

	type User struct {
	    bun.BaseModel `bun:"table:users,alias:u"`
	    pgkit.BaseModel
	    Email string `bun:"email,notnull,unique"`
	    City  string
	}

	func (User) SerializeMap() map[string]string {
	    return map[string]string{"City": "address.city"}
	}

	var u User
	err := pgkit.Populate(&u, payload)       // skips absent keys
	err = pgkit.PopulateStrict(&u, payload)  // fails on absent keys

	out, err := pgkit.ToMapping(u)           // column-keyed mapping
	out, err = pgkit.ToMapping(u, "id")      // include an excluded column

# Error Handling

pgkit provides rich error types:

	if err := pool.WithSession(ctx, fn); err != nil {
	    if pgkit.IsDuplicate(err) {
	        // Handle duplicate key
	    }

	    var dbErr *pgkit.Error
	    if errors.As(err, &dbErr) {
	        fmt.Println(dbErr.Code)       // DUPLICATE
	        fmt.Println(dbErr.Constraint) // users_email_key
	        fmt.Println(dbErr.Detail)     // Key (email)=(test@example.com) already exists
	    }
	}
*/
package pgkit
