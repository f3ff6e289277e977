package native

const defaultLibrary = "libruby.so"
