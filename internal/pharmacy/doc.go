// Package pharmacy defines the records the console exchanges with the
// pharmacy backend and the small derived views built on them.
//
// List endpoints are inconsistent about their envelope: some return a bare
// array, some return {"data": [...]}. DecodeList accepts both so that callers
// only ever see a slice:
//
//	customers, err := pharmacy.DecodeList[pharmacy.Customer](body)
package pharmacy
