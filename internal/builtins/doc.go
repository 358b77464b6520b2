// Package builtins provides the tool packs served by books-mcp.
//
// # Tool Packs
//
// Session Pack (builtin:session) - public:
//
//   - authenticate: Create a session for the connection (username defaults to demo_user)
//   - logout: End the connection's session
//   - session_status: Report authentication state, session age and time left
//
// Books Pack (builtin:books) - protected:
//
//   - books_query: Fetch a book by id or search by title, author, genre and year
//
// Exchange Pack (builtin:exchange) - protected:
//
//   - exchange_convert: Convert an amount between currencies
//
// # Registration
//
//	builtins.RegisterAll(registry, builtins.Deps{Gate: gate, Books: repo, Rates: rates})
//
// Protected tools only run after the dispatcher has authorized the call;
// their handlers read the caller from packs.Call.Identity. Errors meant for
// the caller are returned as *packs.Failure values.
package builtins
