// Package userstore provides count sources that report the number of users held
// by the external user store.
//
// [RedisCounter] counts members of a Redis set or keys matching a pattern.
// [SQLCounter] runs SELECT COUNT(*) against a PostgreSQL table.
//
// # What this package must NOT do
//
//   - Create, modify or migrate user records.
//   - Cache counts; every call reaches the store.
package userstore
