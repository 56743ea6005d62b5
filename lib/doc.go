// Package lib provide useful functions and features that are not
// particularly tied up with the allocator. They are meant to be small,
// self-contained and shall not depend on anything other than the
// standard library.
//
// Types exported by this package are not thread safe, callers shall
// serialize access to them.
package lib
