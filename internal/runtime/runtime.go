package runtime

// The helper functions referenced by generated wrappers. This text is
// prepended once per chunk that contains at least one wrapped module. It must
// stay syntax-compatible with sloppy mode since CommonJS chunks may contain
// sloppy members.
const Helpers = `var __esm = (fn) => {
  var res;
  return () => (fn && (res = fn(fn = 0)), res);
};
var __commonJS = (cb) => {
  var mod;
  return () => (mod || cb((mod = { exports: {} }).exports, mod), mod.exports);
};`
