package native

const defaultLibrary = "libruby.dylib"
