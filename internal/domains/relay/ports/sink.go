package ports

// FragmentSink receives forwarded fragments on their way to the caller.
//
// The HTTP transport implements it by writing and flushing each fragment as one
// chunk. WriteFragment returns an error when the caller is gone.
type FragmentSink interface {
	WriteFragment(fragment string) error
}
